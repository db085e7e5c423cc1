package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agentsites/internal/domain"
)

const buildColumns = `
	q.id, q.agent_id, q.trigger_reason, q.priority, q.status, q.created_at,
	q.started_at, q.completed_at, q.build_url, q.error_message, q.retry_count,
	a.subdomain, a.status AS agent_status`

// Most urgent first (priority 1 before 4), oldest first within a priority.
const eligibleOrder = `ORDER BY q.priority ASC, q.created_at ASC`

type BuildQueueStore struct {
	db *sqlx.DB
}

func NewBuildQueueStore(db *sqlx.DB) *BuildQueueStore {
	return &BuildQueueStore{db: db}
}

func (s *BuildQueueStore) HasQueuedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM build_queue
			WHERE agent_id = $1 AND status = 'queued' AND created_at >= $2
		)`

	var exists bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, tenantID, since).Scan(&exists)
	return exists, err
}

func (s *BuildQueueStore) Insert(ctx context.Context, build domain.NewBuild) (uuid.UUID, error) {
	query := `
		INSERT INTO build_queue (agent_id, trigger_reason, priority, status)
		VALUES ($1, $2, $3, 'queued')
		RETURNING id`

	var id uuid.UUID
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		build.TenantID,
		build.TriggerReason,
		int(build.Priority),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// InsertBatch writes all builds in one statement and returns how many rows
// were inserted.
func (s *BuildQueueStore) InsertBatch(ctx context.Context, builds []domain.NewBuild) (int, error) {
	if len(builds) == 0 {
		return 0, nil
	}

	tenantIDs := make([]string, len(builds))
	reasons := make([]string, len(builds))
	priorities := make([]int64, len(builds))
	for i, b := range builds {
		tenantIDs[i] = b.TenantID.String()
		reasons[i] = b.TriggerReason
		priorities[i] = int64(b.Priority)
	}

	query := `
		INSERT INTO build_queue (agent_id, trigger_reason, priority, status)
		SELECT t.agent_id, t.trigger_reason, t.priority, 'queued'
		FROM unnest($1::uuid[], $2::text[], $3::smallint[]) AS t(agent_id, trigger_reason, priority)`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		pq.Array(tenantIDs),
		pq.Array(reasons),
		pq.Array(priorities),
	)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// NextEligible returns the head of the queue without claiming it. Rows of
// non-active agents are never returned.
func (s *BuildQueueStore) NextEligible(ctx context.Context) (*domain.BuildRequest, error) {
	query := `
		SELECT ` + buildColumns + `
		FROM build_queue q
		INNER JOIN agents a ON a.id = q.agent_id
		WHERE q.status = 'queued' AND a.status = 'active'
		` + eligibleOrder + `
		LIMIT 1`

	var build domain.BuildRequest
	err := s.db.GetContext(ctx, &build, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &build, nil
}

// CountParked counts queued rows whose agent is not active.
func (s *BuildQueueStore) CountParked(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM build_queue q
		INNER JOIN agents a ON a.id = q.agent_id
		WHERE q.status = 'queued' AND a.status <> 'active'`

	var n int
	err := s.db.GetContext(ctx, &n, query)
	return n, err
}

// Claim moves one row from queued to building. It is a compare-and-swap on
// status: nil is returned when the row is no longer queued.
func (s *BuildQueueStore) Claim(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error) {
	query := `
		WITH claimed AS (
			UPDATE build_queue
			SET status = 'building', started_at = NOW()
			WHERE id = $1 AND status = 'queued'
			RETURNING *
		)
		SELECT ` + buildColumns + `
		FROM claimed q
		INNER JOIN agents a ON a.id = q.agent_id`

	return s.claim(ctx, query, id)
}

// ClaimNext claims the queue head in a single statement. SKIP LOCKED lets
// concurrent orchestrators take different rows.
func (s *BuildQueueStore) ClaimNext(ctx context.Context) (*domain.BuildRequest, error) {
	query := `
		WITH next AS (
			SELECT q.id
			FROM build_queue q
			INNER JOIN agents a ON a.id = q.agent_id
			WHERE q.status = 'queued' AND a.status = 'active'
			` + eligibleOrder + `
			LIMIT 1
			FOR UPDATE OF q SKIP LOCKED
		), claimed AS (
			UPDATE build_queue b
			SET status = 'building', started_at = NOW()
			FROM next
			WHERE b.id = next.id AND b.status = 'queued'
			RETURNING b.*
		)
		SELECT ` + buildColumns + `
		FROM claimed q
		INNER JOIN agents a ON a.id = q.agent_id`

	return s.claim(ctx, query)
}

func (s *BuildQueueStore) claim(ctx context.Context, query string, args ...interface{}) (*domain.BuildRequest, error) {
	var build domain.BuildRequest
	err := s.db.GetContext(ctx, &build, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &build, nil
}

// Complete records the terminal state of a building row. It reports false
// when the row was not in building.
func (s *BuildQueueStore) Complete(ctx context.Context, id uuid.UUID, c domain.Completion) (bool, error) {
	status := domain.BuildStatusFailed
	if c.Success {
		status = domain.BuildStatusCompleted
	}

	query := `
		UPDATE build_queue
		SET status = $2,
			completed_at = NOW(),
			build_url = NULLIF($3, ''),
			error_message = NULLIF($4, '')
		WHERE id = $1 AND status = 'building'`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id, string(status), c.BuildURL, c.ErrorMessage)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *BuildQueueStore) Get(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error) {
	query := `
		SELECT ` + buildColumns + `
		FROM build_queue q
		INNER JOIN agents a ON a.id = q.agent_id
		WHERE q.id = $1`

	var build domain.BuildRequest
	err := s.db.GetContext(ctx, &build, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &build, nil
}

func (s *BuildQueueStore) Stats(ctx context.Context) (*domain.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued') AS queued,
			COUNT(*) FILTER (WHERE status = 'building') AS building,
			COUNT(*) FILTER (WHERE status = 'completed' AND completed_at >= date_trunc('day', NOW())) AS completed_today,
			COUNT(*) FILTER (WHERE status = 'failed' AND completed_at >= date_trunc('day', NOW())) AS failed_today
		FROM build_queue`

	var stats domain.QueueStats
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, err
	}
	return &stats, nil
}
