package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agentsites/internal/deploy/vercel"
	"agentsites/internal/domain"
)

type BuildQueueStore interface {
	HasQueuedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (bool, error)
	Insert(ctx context.Context, build domain.NewBuild) (uuid.UUID, error)
	InsertBatch(ctx context.Context, builds []domain.NewBuild) (int, error)
	NextEligible(ctx context.Context) (*domain.BuildRequest, error)
	CountParked(ctx context.Context) (int, error)
	Claim(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error)
	ClaimNext(ctx context.Context) (*domain.BuildRequest, error)
	Complete(ctx context.Context, id uuid.UUID, c domain.Completion) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error)
	Stats(ctx context.Context) (*domain.QueueStats, error)
}

type TenantStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	FindByBranchID(ctx context.Context, branchID string) (*domain.Tenant, error)
	ListActive(ctx context.Context) ([]domain.Tenant, error)
}

type ContentStore interface {
	ListSiteContent(ctx context.Context, tenantID uuid.UUID) ([]domain.ContentItem, error)
	GetFees(ctx context.Context, tenantID uuid.UUID) (*string, error)
	ListPublishedGlobalContent(ctx context.Context) ([]domain.GlobalContent, error)
}

type PropertyStore interface {
	Upsert(ctx context.Context, p *domain.Property) (*domain.PropertyUpsert, error)
	SoftDelete(ctx context.Context, externalID string) (*domain.PropertyRemoval, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Property, error)
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Deployer interface {
	Trigger(ctx context.Context, subdomain string, siteData []byte) (*vercel.Deployment, error)
	WaitForDeployment(ctx context.Context, id string) (*vercel.DeploymentStatus, error)
}

type Publisher interface {
	PublishBuildEvent(ctx context.Context, event domain.BuildEvent) error
	Close() error
}

type ListingSource interface {
	ID() string
	FetchListings(ctx context.Context) ([]domain.Listing, error)
}

// Queue is the part of BuildQueue the orchestrator drives.
type Queue interface {
	Dequeue(ctx context.Context) (*domain.BuildRequest, error)
	Claim(ctx context.Context, id uuid.UUID) (*domain.BuildRequest, error)
	ClaimNext(ctx context.Context) (*domain.BuildRequest, error)
	Complete(ctx context.Context, id uuid.UUID, c domain.Completion) error
}

// Enqueuer requests rebuilds on behalf of other services.
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID uuid.UUID, reason string, priority domain.BuildPriority) (*domain.EnqueueResult, error)
}

type DataFileGenerator interface {
	GenerateDataFile(ctx context.Context, tenantID uuid.UUID) ([]byte, error)
}
