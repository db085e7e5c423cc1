package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"agentsites/internal/config"
	"agentsites/internal/domain"
	"agentsites/internal/service/mocks"
)

type BuildQueueTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store     *mocks.MockBuildQueueStore
	tenants   *mocks.MockTenantStore
	txManager *mocks.MockTransactionManager

	queue  *BuildQueue
	cfg    config.QueueConfig
	logger *slog.Logger
}

func (s *BuildQueueTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.store = mocks.NewMockBuildQueueStore(s.ctrl)
	s.tenants = mocks.NewMockTenantStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)

	s.cfg = config.QueueConfig{
		DedupWindow:        5 * time.Minute,
		BroadcastChunkSize: 10,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()

	s.queue = NewBuildQueue(s.store, s.tenants, s.txManager, s.logger, s.cfg)
}

func (s *BuildQueueTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestBuildQueueTestSuite(t *testing.T) {
	suite.Run(t, new(BuildQueueTestSuite))
}

func (s *BuildQueueTestSuite) TestEnqueue_InsertsWhenNoRecentBuild() {
	ctx := context.Background()
	tenantID := uuid.New()
	buildID := uuid.New()

	s.store.EXPECT().HasQueuedSince(ctx, tenantID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, since time.Time) (bool, error) {
			s.WithinDuration(time.Now().Add(-5*time.Minute), since, 5*time.Second)
			return false, nil
		},
	)
	s.store.EXPECT().Insert(ctx, domain.NewBuild{
		TenantID:      tenantID,
		TriggerReason: domain.TriggerContentApproved,
		Priority:      domain.PriorityNormal,
	}).Return(buildID, nil)

	result, err := s.queue.Enqueue(ctx, tenantID, domain.TriggerContentApproved, domain.PriorityNormal)

	s.Require().NoError(err)
	s.True(result.Queued)
	s.Equal(domain.EnqueueQueued, result.Code)
	s.Require().NotNil(result.ID)
	s.Equal(buildID, *result.ID)
}

func (s *BuildQueueTestSuite) TestEnqueue_SuppressesDuplicateInWindow() {
	ctx := context.Background()
	tenantID := uuid.New()

	s.store.EXPECT().HasQueuedSince(ctx, tenantID, gomock.Any()).Return(true, nil)

	result, err := s.queue.Enqueue(ctx, tenantID, domain.TriggerProfileUpdated, domain.PriorityLow)

	s.Require().NoError(err)
	s.False(result.Queued)
	s.Equal(domain.EnqueueDuplicateSuppressed, result.Code)
	s.Nil(result.ID)
}

func (s *BuildQueueTestSuite) TestEnqueue_RejectsInvalidPriority() {
	for _, p := range []domain.BuildPriority{0, 5, -1} {
		_, err := s.queue.Enqueue(context.Background(), uuid.New(), domain.TriggerManual, p)
		s.ErrorIs(err, ErrInvalidPriority)
	}
}

func (s *BuildQueueTestSuite) TestEnqueue_RejectsEmptyReason() {
	_, err := s.queue.Enqueue(context.Background(), uuid.New(), "", domain.PriorityNormal)
	s.ErrorIs(err, ErrEmptyReason)
}

func (s *BuildQueueTestSuite) TestEnqueue_StoreError() {
	ctx := context.Background()
	tenantID := uuid.New()

	s.store.EXPECT().HasQueuedSince(ctx, tenantID, gomock.Any()).Return(false, nil)
	s.store.EXPECT().Insert(ctx, gomock.Any()).Return(uuid.Nil, errors.New("connection reset"))

	result, err := s.queue.Enqueue(ctx, tenantID, domain.TriggerManual, domain.PriorityHigh)

	s.Error(err)
	s.Nil(result)
	s.Contains(err.Error(), "insert build")
}

func (s *BuildQueueTestSuite) TestDequeue_ReturnsHead() {
	ctx := context.Background()
	head := &domain.BuildRequest{ID: uuid.New(), Priority: domain.PriorityEmergency}

	s.store.EXPECT().NextEligible(ctx).Return(head, nil)

	got, err := s.queue.Dequeue(ctx)

	s.Require().NoError(err)
	s.Equal(head, got)
}

func (s *BuildQueueTestSuite) TestDequeue_EmptyCountsParkedRows() {
	ctx := context.Background()

	s.store.EXPECT().NextEligible(ctx).Return(nil, nil)
	s.store.EXPECT().CountParked(ctx).Return(3, nil)

	got, err := s.queue.Dequeue(ctx)

	s.NoError(err)
	s.Nil(got)
}

func (s *BuildQueueTestSuite) TestClaim_LostRaceReturnsNil() {
	ctx := context.Background()
	id := uuid.New()

	s.store.EXPECT().Claim(ctx, id).Return(nil, nil)

	got, err := s.queue.Claim(ctx, id)

	s.NoError(err)
	s.Nil(got)
}

func (s *BuildQueueTestSuite) TestComplete_NotBuilding() {
	ctx := context.Background()
	id := uuid.New()
	c := domain.Completion{Success: true, BuildURL: "https://jane.example.co.uk"}

	s.store.EXPECT().Complete(ctx, id, c).Return(false, nil)

	err := s.queue.Complete(ctx, id, c)

	s.ErrorIs(err, ErrBuildNotBuilding)
}

func (s *BuildQueueTestSuite) TestGet() {
	ctx := context.Background()
	id := uuid.New()

	s.store.EXPECT().Get(ctx, id).Return(&domain.BuildRequest{ID: id, Status: domain.BuildStatusFailed}, nil)
	got, err := s.queue.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.BuildStatusFailed, got.Status)

	s.store.EXPECT().Get(ctx, id).Return(nil, errors.New("connection reset"))
	_, err = s.queue.Get(ctx, id)
	s.ErrorContains(err, "get build")
}

func (s *BuildQueueTestSuite) TestBroadcast_QueuesEveryActiveAgent() {
	ctx := context.Background()

	tenants := make([]domain.Tenant, 37)
	for i := range tenants {
		tenants[i] = domain.Tenant{ID: uuid.New(), Status: domain.TenantStatusActive}
	}
	s.tenants.EXPECT().ListActive(ctx).Return(tenants, nil)

	var inserted []domain.NewBuild
	s.store.EXPECT().InsertBatch(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, builds []domain.NewBuild) (int, error) {
			s.LessOrEqual(len(builds), 10)
			inserted = append(inserted, builds...)
			return len(builds), nil
		},
	).Times(4)

	result, err := s.queue.BroadcastGlobalContentRebuild(ctx, "footer")

	s.Require().NoError(err)
	s.Equal(37, result.Queued)
	s.Equal(0, result.Errors)
	s.Len(inserted, 37)

	seen := make(map[uuid.UUID]bool)
	for _, b := range inserted {
		s.Equal("global_content:footer", b.TriggerReason)
		s.Equal(domain.PriorityEmergency, b.Priority)
		seen[b.TenantID] = true
	}
	s.Len(seen, 37)
}

func (s *BuildQueueTestSuite) TestBroadcast_FailedChunkCountsAsErrors() {
	ctx := context.Background()

	tenants := make([]domain.Tenant, 25)
	for i := range tenants {
		tenants[i] = domain.Tenant{ID: uuid.New(), Status: domain.TenantStatusActive}
	}
	s.tenants.EXPECT().ListActive(ctx).Return(tenants, nil)

	gomock.InOrder(
		s.store.EXPECT().InsertBatch(ctx, gomock.Len(10)).Return(10, nil),
		s.store.EXPECT().InsertBatch(ctx, gomock.Len(10)).Return(0, errors.New("deadlock detected")),
		s.store.EXPECT().InsertBatch(ctx, gomock.Len(5)).Return(5, nil),
	)

	result, err := s.queue.BroadcastGlobalContentRebuild(ctx, "privacy_policy")

	s.Require().NoError(err)
	s.Equal(15, result.Queued)
	s.Equal(10, result.Errors)
}

func (s *BuildQueueTestSuite) TestBroadcast_NoActiveAgents() {
	ctx := context.Background()

	s.tenants.EXPECT().ListActive(ctx).Return(nil, nil)

	result, err := s.queue.BroadcastGlobalContentRebuild(ctx, "header")

	s.Require().NoError(err)
	s.Equal(0, result.Queued)
	s.Equal(0, result.Errors)
}

func (s *BuildQueueTestSuite) TestBroadcast_ListError() {
	ctx := context.Background()

	s.tenants.EXPECT().ListActive(ctx).Return(nil, errors.New("timeout"))

	result, err := s.queue.BroadcastGlobalContentRebuild(ctx, "header")

	s.Error(err)
	s.Nil(result)
}
