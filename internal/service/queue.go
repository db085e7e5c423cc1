package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"agentsites/internal/config"
	"agentsites/internal/domain"
	"agentsites/internal/metrics"
)

var (
	ErrInvalidPriority   = errors.New("priority must be between 1 and 4")
	ErrEmptyReason       = errors.New("trigger reason is required")
	ErrBuildNotClaimable = errors.New("build not found or already processed")
	ErrBuildNotBuilding  = errors.New("build is not in building state")
)

// BuildQueue is the durable rebuild request queue shared by every agent.
type BuildQueue struct {
	store     BuildQueueStore
	tenants   TenantStore
	txManager TransactionManager
	logger    *slog.Logger
	config    config.QueueConfig
}

func NewBuildQueue(
	store BuildQueueStore,
	tenants TenantStore,
	txManager TransactionManager,
	logger *slog.Logger,
	cfg config.QueueConfig,
) *BuildQueue {
	return &BuildQueue{
		store:     store,
		tenants:   tenants,
		txManager: txManager,
		logger:    logger.With("component", "build_queue"),
		config:    cfg,
	}
}

// Enqueue adds a rebuild request. A request for an agent that already has
// a queued row younger than the dedup window is suppressed, not an error.
func (q *BuildQueue) Enqueue(ctx context.Context, tenantID uuid.UUID, reason string, priority domain.BuildPriority) (*domain.EnqueueResult, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("enqueue build: %w", ErrInvalidPriority)
	}
	if reason == "" {
		return nil, fmt.Errorf("enqueue build: %w", ErrEmptyReason)
	}

	var result *domain.EnqueueResult
	err := q.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		since := time.Now().Add(-q.config.DedupWindow)
		duplicate, err := q.store.HasQueuedSince(txCtx, tenantID, since)
		if err != nil {
			return fmt.Errorf("check recent builds: %w", err)
		}
		if duplicate {
			result = &domain.EnqueueResult{
				Queued:  false,
				Code:    domain.EnqueueDuplicateSuppressed,
				Message: "Build already queued for this agent",
			}
			return nil
		}

		id, err := q.store.Insert(txCtx, domain.NewBuild{
			TenantID:      tenantID,
			TriggerReason: reason,
			Priority:      priority,
		})
		if err != nil {
			return fmt.Errorf("insert build: %w", err)
		}

		result = &domain.EnqueueResult{
			ID:      &id,
			Queued:  true,
			Code:    domain.EnqueueQueued,
			Message: "Build queued",
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue build: %w", err)
	}

	if result.Queued {
		metrics.BuildsEnqueuedTotal.WithLabelValues(strconv.Itoa(int(priority))).Inc()
		q.logger.Info("build queued",
			"build_id", result.ID,
			"agent_id", tenantID,
			"reason", reason,
			"priority", int(priority),
		)
	} else {
		metrics.BuildsSuppressedTotal.Inc()
		q.logger.Info("duplicate build suppressed",
			"agent_id", tenantID,
			"reason", reason,
			"window", q.config.DedupWindow,
		)
	}

	return result, nil
}

// Dequeue returns the next eligible request without claiming it, or nil.
func (q *BuildQueue) Dequeue(ctx context.Context) (*domain.BuildRequest, error) {
	build, err := q.store.NextEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("dequeue build: %w", err)
	}
	if build != nil {
		return build, nil
	}

	parked, err := q.store.CountParked(ctx)
	if err != nil {
		q.logger.Warn("failed to count parked builds", "error", err)
		return nil, nil
	}
	if parked > 0 {
		q.logger.Info("skipping builds for inactive agents", "count", parked)
	}
	return nil, nil
}

// Claim moves a queued request to building. Nil means another worker got
// there first or the row is gone.
func (q *BuildQueue) Claim(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error) {
	build, err := q.store.Claim(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim build %s: %w", id, err)
	}
	return build, nil
}

func (q *BuildQueue) ClaimNext(ctx context.Context) (*domain.BuildRequest, error) {
	build, err := q.store.ClaimNext(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim next build: %w", err)
	}
	return build, nil
}

func (q *BuildQueue) Complete(ctx context.Context, id uuid.UUID, c domain.Completion) error {
	ok, err := q.store.Complete(ctx, id, c)
	if err != nil {
		return fmt.Errorf("complete build %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("complete build %s: %w", id, ErrBuildNotBuilding)
	}
	return nil
}

// Get returns the request with id, or nil if there is none.
func (q *BuildQueue) Get(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error) {
	build, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get build %s: %w", id, err)
	}
	return build, nil
}

// BroadcastGlobalContentRebuild queues an emergency rebuild for every active
// agent. Rows go in fixed size chunks; a failed chunk is counted in Errors
// and does not undo chunks already written.
func (q *BuildQueue) BroadcastGlobalContentRebuild(ctx context.Context, contentType string) (*domain.BroadcastResult, error) {
	tenants, err := q.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}

	reason := domain.TriggerGlobalContentTag + contentType
	result := &domain.BroadcastResult{}

	chunkSize := q.config.BroadcastChunkSize
	if chunkSize <= 0 {
		chunkSize = len(tenants)
	}

	for start := 0; start < len(tenants); start += chunkSize {
		end := min(start+chunkSize, len(tenants))

		chunk := make([]domain.NewBuild, 0, end-start)
		for _, t := range tenants[start:end] {
			chunk = append(chunk, domain.NewBuild{
				TenantID:      t.ID,
				TriggerReason: reason,
				Priority:      domain.PriorityEmergency,
			})
		}

		n, err := q.store.InsertBatch(ctx, chunk)
		if err != nil {
			result.Errors += len(chunk)
			q.logger.Error("failed to queue broadcast chunk",
				"content_type", contentType,
				"offset", start,
				"size", len(chunk),
				"error", err,
			)
			continue
		}
		result.Queued += n
	}

	metrics.BuildsEnqueuedTotal.WithLabelValues(strconv.Itoa(int(domain.PriorityEmergency))).Add(float64(result.Queued))
	q.logger.Info("global content rebuild broadcast",
		"content_type", contentType,
		"agents", len(tenants),
		"queued", result.Queued,
		"errors", result.Errors,
	)

	return result, nil
}

func (q *BuildQueue) Stats(ctx context.Context) (*domain.QueueStats, error) {
	stats, err := q.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}
