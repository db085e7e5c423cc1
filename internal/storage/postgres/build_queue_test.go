package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"agentsites/internal/domain"
)

var buildRowColumns = []string{
	"id", "agent_id", "trigger_reason", "priority", "status", "created_at",
	"started_at", "completed_at", "build_url", "error_message", "retry_count",
	"subdomain", "agent_status",
}

type BuildQueueStoreTestSuite struct {
	suite.Suite
	mock  sqlmock.Sqlmock
	db    *sqlx.DB
	store *BuildQueueStore
}

func (s *BuildQueueStoreTestSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)

	s.mock = mock
	s.db = sqlx.NewDb(db, "sqlmock")
	s.store = NewBuildQueueStore(s.db)
}

func (s *BuildQueueStoreTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func TestBuildQueueStoreTestSuite(t *testing.T) {
	suite.Run(t, new(BuildQueueStoreTestSuite))
}

func (s *BuildQueueStoreTestSuite) TestClaim_ReturnsClaimedRow() {
	id := uuid.New()
	agentID := uuid.New()
	now := time.Now()

	s.mock.ExpectQuery(`UPDATE build_queue\s+SET status = 'building'`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(buildRowColumns).AddRow(
			id.String(), agentID.String(), "content_approved", int64(3), "building", now,
			now, nil, nil, nil, int64(0),
			"jane", "active",
		))

	build, err := s.store.Claim(context.Background(), id)

	s.Require().NoError(err)
	s.Require().NotNil(build)
	s.Equal(id, build.ID)
	s.Equal(agentID, build.TenantID)
	s.Equal(domain.PriorityNormal, build.Priority)
	s.Equal(domain.BuildStatusBuilding, build.Status)
	s.Equal("jane", build.Subdomain)
	s.Nil(build.CompletedAt)
}

func (s *BuildQueueStoreTestSuite) TestClaim_NotQueuedReturnsNil() {
	id := uuid.New()

	s.mock.ExpectQuery(`UPDATE build_queue`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(buildRowColumns))

	build, err := s.store.Claim(context.Background(), id)

	s.NoError(err)
	s.Nil(build)
}

func (s *BuildQueueStoreTestSuite) TestClaimNext_SkipsLockedRows() {
	s.mock.ExpectQuery(`FOR UPDATE OF q SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows(buildRowColumns))

	build, err := s.store.ClaimNext(context.Background())

	s.NoError(err)
	s.Nil(build)
}

func (s *BuildQueueStoreTestSuite) TestClaim_PropagatesErrors() {
	s.mock.ExpectQuery(`UPDATE build_queue`).WillReturnError(errors.New("connection reset"))

	build, err := s.store.Claim(context.Background(), uuid.New())

	s.Error(err)
	s.Nil(build)
}

func (s *BuildQueueStoreTestSuite) TestHasQueuedSince() {
	tenantID := uuid.New()

	s.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(tenantID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.store.HasQueuedSince(context.Background(), tenantID, time.Now().Add(-5*time.Minute))

	s.NoError(err)
	s.True(exists)
}

func (s *BuildQueueStoreTestSuite) TestComplete_ReportsWhetherRowWasBuilding() {
	id := uuid.New()

	s.mock.ExpectExec(`UPDATE build_queue\s+SET status = \$2`).
		WithArgs(id, "completed", "https://jane.example.co.uk", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(`UPDATE build_queue`).
		WithArgs(id, "failed", "", "Agent subdomain not found").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.store.Complete(context.Background(), id, domain.Completion{Success: true, BuildURL: "https://jane.example.co.uk"})
	s.NoError(err)
	s.True(ok)

	ok, err = s.store.Complete(context.Background(), id, domain.Completion{ErrorMessage: "Agent subdomain not found"})
	s.NoError(err)
	s.False(ok)
}

func (s *BuildQueueStoreTestSuite) TestInsertBatch() {
	n, err := s.store.InsertBatch(context.Background(), nil)
	s.NoError(err)
	s.Zero(n)

	s.mock.ExpectExec(`INSERT INTO build_queue .* FROM unnest`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err = s.store.InsertBatch(context.Background(), []domain.NewBuild{
		{TenantID: uuid.New(), TriggerReason: "global_content:header", Priority: domain.PriorityEmergency},
		{TenantID: uuid.New(), TriggerReason: "global_content:header", Priority: domain.PriorityEmergency},
	})
	s.NoError(err)
	s.Equal(2, n)
}

func (s *BuildQueueStoreTestSuite) TestInsert_UsesTransactionFromContext() {
	buildID := uuid.New()
	tenantID := uuid.New()
	txManager := NewTransactionManager(s.db)

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(tenantID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	s.mock.ExpectQuery(`INSERT INTO build_queue`).
		WithArgs(tenantID, domain.TriggerManual, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(buildID.String()))
	s.mock.ExpectCommit()

	var got uuid.UUID
	err := txManager.WithTransaction(context.Background(), func(ctx context.Context) error {
		exists, err := s.store.HasQueuedSince(ctx, tenantID, time.Now())
		if err != nil || exists {
			return err
		}
		got, err = s.store.Insert(ctx, domain.NewBuild{TenantID: tenantID, TriggerReason: domain.TriggerManual, Priority: domain.PriorityHigh})
		return err
	})

	s.Require().NoError(err)
	s.Equal(buildID, got)
}

func (s *BuildQueueStoreTestSuite) TestTransaction_RollsBackOnError() {
	txManager := NewTransactionManager(s.db)

	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	err := txManager.WithTransaction(context.Background(), func(context.Context) error {
		return errors.New("abort")
	})

	s.EqualError(err, "abort")
}
