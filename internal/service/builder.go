package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agentsites/internal/config"
	"agentsites/internal/deploy/vercel"
	"agentsites/internal/domain"
	"agentsites/internal/metrics"
)

// completeTimeout bounds the write-back of a result once the build context
// is already done.
const completeTimeout = 10 * time.Second

// Builder drains the build queue and ships each agent site.
type Builder struct {
	queue         Queue
	data          DataFileGenerator
	deployer      Deployer
	publisher     Publisher
	logger        *slog.Logger
	maxConcurrent int
}

// NewBuilder wires the orchestrator. publisher may be nil.
func NewBuilder(
	queue Queue,
	data DataFileGenerator,
	deployer Deployer,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.BuilderConfig,
) *Builder {
	return &Builder{
		queue:         queue,
		data:          data,
		deployer:      deployer,
		publisher:     publisher,
		logger:        logger.With("component", "builder"),
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// BuildLog is the per-build text log returned with the result.
type BuildLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *BuildLog) Add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...)))
}

func (l *BuildLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// ProcessBuild runs one specific build. It only proceeds when the build is
// the current queue head and this call wins the claim; otherwise the queue
// is left untouched.
func (b *Builder) ProcessBuild(ctx context.Context, buildID uuid.UUID) domain.BuildResult {
	log := &BuildLog{}
	log.Add("Starting build %s", buildID)

	head, err := b.queue.Dequeue(ctx)
	if err != nil {
		return failedResult(buildID, log, err.Error())
	}
	if head == nil || head.ID != buildID {
		return failedResult(buildID, log, ErrBuildNotClaimable.Error())
	}

	claimed, err := b.queue.Claim(ctx, buildID)
	if err != nil {
		return failedResult(buildID, log, err.Error())
	}
	if claimed == nil {
		return failedResult(buildID, log, ErrBuildNotClaimable.Error())
	}

	return b.run(ctx, claimed, log)
}

// ProcessBuildQueue claims up to maxConcurrent builds and runs them in
// parallel. A non-positive maxConcurrent uses the configured limit.
func (b *Builder) ProcessBuildQueue(ctx context.Context, maxConcurrent int) []domain.BuildResult {
	if maxConcurrent <= 0 {
		maxConcurrent = b.maxConcurrent
	}

	var claimed []*domain.BuildRequest
	for len(claimed) < maxConcurrent {
		build, err := b.queue.ClaimNext(ctx)
		if err != nil {
			b.logger.Error("failed to claim build", "error", err)
			break
		}
		if build == nil {
			break
		}
		claimed = append(claimed, build)
	}

	if len(claimed) == 0 {
		b.logger.Debug("no builds in queue")
		return nil
	}

	b.logger.Info("processing builds", "count", len(claimed), "max_concurrent", maxConcurrent)

	results := make([]domain.BuildResult, len(claimed))
	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, build := range claimed {
		g.Go(func() error {
			results[i] = b.run(ctx, build, &BuildLog{})
			return nil
		})
	}
	_ = g.Wait()

	var succeeded, failed int
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	b.logger.Info("build batch finished", "succeeded", succeeded, "failed", failed)

	return results
}

// Run drains one batch at the configured concurrency.
func (b *Builder) Run(ctx context.Context) error {
	b.ProcessBuildQueue(ctx, b.maxConcurrent)
	return nil
}

func (b *Builder) run(ctx context.Context, build *domain.BuildRequest, log *BuildLog) domain.BuildResult {
	start := time.Now()
	logger := b.logger.With("build_id", build.ID, "agent_id", build.TenantID, "subdomain", build.Subdomain)

	result := b.execute(ctx, build, log)

	completion := domain.Completion{Success: result.Success}
	if result.Success {
		completion.BuildURL = result.DeploymentURL
	} else {
		completion.ErrorMessage = result.ErrorMessage
	}

	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancel()
	if err := b.queue.Complete(completeCtx, build.ID, completion); err != nil {
		log.Add("Failed to record result: %v", err)
		logger.Error("failed to record build result", "error", err)
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	metrics.BuildsTotal.WithLabelValues(outcome).Inc()
	metrics.BuildDuration.Observe(time.Since(start).Seconds())

	if result.Success {
		logger.Info("build completed", "url", result.DeploymentURL, "duration", time.Since(start))
	} else {
		logger.Warn("build failed", "error", result.ErrorMessage, "duration", time.Since(start))
	}

	b.publish(completeCtx, build, result)

	result.BuildLogs = log.String()
	return result
}

// execute never panics; a panic anywhere in the build becomes a failure.
func (b *Builder) execute(ctx context.Context, build *domain.BuildRequest, log *BuildLog) (result domain.BuildResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("build panicked", "build_id", build.ID, "panic", r)
			result = failedResult(build.ID, log, fmt.Sprintf("build panicked: %v", r))
		}
	}()

	log.Add("Building site for agent %s (reason: %s)", build.TenantID, build.TriggerReason)

	if build.Subdomain == "" {
		return failedResult(build.ID, log, "Agent subdomain not found")
	}

	data, err := b.data.GenerateDataFile(ctx, build.TenantID)
	if err != nil {
		return failedResult(build.ID, log, fmt.Sprintf("generate site data: %v", err))
	}
	if data == nil {
		return failedResult(build.ID, log, "Failed to generate site data - agent may be inactive or deleted")
	}
	log.Add("Generated site data (%d bytes)", len(data))

	deployment, err := b.deployer.Trigger(ctx, build.Subdomain, data)
	if err != nil {
		return failedResult(build.ID, log, fmt.Sprintf("trigger deployment: %v", err))
	}
	log.Add("Deployment %s triggered", deployment.ID)

	status, err := b.deployer.WaitForDeployment(ctx, deployment.ID)
	if err != nil {
		msg := fmt.Sprintf("wait for deployment: %v", err)
		if errors.Is(err, vercel.ErrDeploymentTimeout) {
			msg = err.Error()
		}
		r := failedResult(build.ID, log, msg)
		r.DeploymentID = deployment.ID
		return r
	}

	if status.State != vercel.StateReady {
		msg := fmt.Sprintf("Deployment failed with state: %s", status.State)
		if status.ErrorMessage != "" {
			msg += " (" + status.ErrorMessage + ")"
		}
		r := failedResult(build.ID, log, msg)
		r.DeploymentID = deployment.ID
		return r
	}

	url := deployment.URL
	if status.URL != "" {
		url = status.URL
	}
	log.Add("Deployment ready at %s", url)
	return domain.BuildResult{
		BuildID:       build.ID,
		Success:       true,
		DeploymentID:  deployment.ID,
		DeploymentURL: url,
	}
}

func (b *Builder) publish(ctx context.Context, build *domain.BuildRequest, result domain.BuildResult) {
	if b.publisher == nil {
		return
	}

	event := domain.BuildEvent{
		BuildID:       build.ID,
		TenantID:      build.TenantID,
		Subdomain:     build.Subdomain,
		TriggerReason: build.TriggerReason,
		Success:       result.Success,
		DeploymentURL: result.DeploymentURL,
		ErrorMessage:  result.ErrorMessage,
		FinishedAt:    time.Now().UTC(),
	}
	if err := b.publisher.PublishBuildEvent(ctx, event); err != nil {
		b.logger.Warn("failed to publish build event", "build_id", build.ID, "error", err)
	}
}

func failedResult(id uuid.UUID, log *BuildLog, msg string) domain.BuildResult {
	log.Add("Build failed: %s", msg)
	return domain.BuildResult{
		BuildID:      id,
		Success:      false,
		ErrorMessage: msg,
		BuildLogs:    log.String(),
	}
}
