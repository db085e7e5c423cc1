package httpapi

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/google/uuid"

	"agentsites/internal/domain"
)

type PropertySync interface {
	HandleEvent(ctx context.Context, event domain.ListingEvent) (*domain.SyncOutcome, error)
	Property(ctx context.Context, listingID string) (*domain.Property, error)
}

type BuildQueue interface {
	Enqueue(ctx context.Context, tenantID uuid.UUID, reason string, priority domain.BuildPriority) (*domain.EnqueueResult, error)
	BroadcastGlobalContentRebuild(ctx context.Context, contentType string) (*domain.BroadcastResult, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error)
	Stats(ctx context.Context) (*domain.QueueStats, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}
