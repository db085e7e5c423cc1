package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"agentsites/internal/domain"
	"agentsites/internal/httpapi/mocks"
	"agentsites/internal/service"
	"agentsites/testdata/utils"
)

const listingBody = `{"id": 4521, "branch": {"id": 12, "name": "Hove"}, "price": "450000", "transactionType": "sale", "status": "Available"}`

type ServerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	properties *mocks.MockPropertySync
	queue      *mocks.MockBuildQueue
	db         *mocks.MockPinger

	handler http.Handler
	logger  *slog.Logger
}

func (s *ServerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.properties = mocks.NewMockPropertySync(s.ctrl)
	s.queue = mocks.NewMockBuildQueue(s.ctrl)
	s.db = mocks.NewMockPinger(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.handler = NewServer(s.properties, s.queue, s.db, "", s.logger).Routes()
}

func (s *ServerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) do(h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func webhook(action string) string {
	return fmt.Sprintf(`{"action":%q,"listing":%s}`, action, listingBody)
}

func (s *ServerTestSuite) TestWebhook_Success() {
	propertyID := uuid.New()

	s.properties.EXPECT().HandleEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.ListingEvent) (*domain.SyncOutcome, error) {
			s.Equal(domain.ListingCreate, e.Action)
			s.Equal("4521", e.Listing.ExternalID)
			s.Equal("12", e.Listing.BranchID)
			return &domain.SyncOutcome{Success: true, Message: "Property created", PropertyID: &propertyID, ListingID: "4521"}, nil
		},
	)

	rec, body := s.do(s.handler, http.MethodPost, "/webhooks/apex27", webhook("create"), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["success"])
	s.Equal("Property created", body["message"])
	s.Equal(propertyID.String(), body["propertyId"])
	s.Equal("4521", body["listingId"])
}

func (s *ServerTestSuite) TestWebhook_UnmappedBranchReportsBranchID() {
	s.properties.EXPECT().HandleEvent(gomock.Any(), gomock.Any()).Return(&domain.SyncOutcome{
		Success:   true,
		Skipped:   true,
		Message:   "Property skipped - no matching agent",
		ListingID: "4521",
		BranchID:  "999999",
	}, nil)

	rec, body := s.do(s.handler, http.MethodPost, "/webhooks/apex27", webhook("create"), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["success"])
	s.Equal(true, body["skipped"])
	s.Equal(float64(999999), body["branchId"])
	s.NotContains(body, "propertyId")
}

func (s *ServerTestSuite) TestWebhook_DeleteWithoutBranch() {
	s.properties.EXPECT().HandleEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.ListingEvent) (*domain.SyncOutcome, error) {
			s.Equal(domain.ListingDelete, e.Action)
			s.Equal("12345", e.Listing.ExternalID)
			return &domain.SyncOutcome{Success: true, Message: "Property marked as sold", ListingID: "12345"}, nil
		},
	)

	rec, body := s.do(s.handler, http.MethodPost, "/webhooks/apex27", `{"action":"delete","listing":{"id":12345}}`, nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["success"])
	s.NotContains(body, "branchId")
}

func (s *ServerTestSuite) TestWebhook_UnknownActionIs400() {
	rec, body := s.do(s.handler, http.MethodPost, "/webhooks/apex27", webhook("archive"), nil)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(false, body["success"])
	s.NotEmpty(body["error"])
}

func (s *ServerTestSuite) TestWebhook_InvalidPayloadIs400() {
	rec, _ := s.do(s.handler, http.MethodPost, "/webhooks/apex27", `{"action":"create","listing":{"id":"abc"}}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec, _ = s.do(s.handler, http.MethodPost, "/webhooks/apex27", `not json`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestWebhook_ProcessingErrorStill200() {
	s.properties.EXPECT().HandleEvent(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	rec, body := s.do(s.handler, http.MethodPost, "/webhooks/apex27", webhook("update"), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(false, body["success"])
	s.Equal("Internal server error", body["error"])
}

func (s *ServerTestSuite) TestWebhook_Signature() {
	h := NewServer(s.properties, s.queue, s.db, "s3cret", s.logger).Routes()
	payload := webhook("delete")

	rec, _ := s.do(h, http.MethodPost, "/webhooks/apex27", payload, map[string]string{signatureHeader: "sha256=deadbeef"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(h, http.MethodPost, "/webhooks/apex27", payload, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	s.properties.EXPECT().HandleEvent(gomock.Any(), gomock.Any()).Return(&domain.SyncOutcome{Success: true, Message: "Property marked as sold", ListingID: "4521"}, nil)

	rec, body := s.do(h, http.MethodPost, "/webhooks/apex27", payload, map[string]string{signatureHeader: "sha256=" + utils.SignHMAC([]byte(payload), "s3cret")})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["success"])
}

func (s *ServerTestSuite) TestEnqueueBuild_Queued() {
	tenantID := uuid.New()
	buildID := uuid.New()

	s.queue.EXPECT().Enqueue(gomock.Any(), tenantID, domain.TriggerManual, domain.PriorityHigh).
		Return(&domain.EnqueueResult{ID: &buildID, Queued: true, Code: domain.EnqueueQueued}, nil)

	rec, body := s.do(s.handler, http.MethodPost, "/admin/builds",
		fmt.Sprintf(`{"tenantId":%q,"reason":"manual_trigger","priority":2}`, tenantID), nil)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal(buildID.String(), body["id"])
	s.Equal("QUEUED", body["code"])
}

func (s *ServerTestSuite) TestEnqueueBuild_SuppressedDefaultsPriority() {
	tenantID := uuid.New()

	s.queue.EXPECT().Enqueue(gomock.Any(), tenantID, domain.TriggerProfileUpdated, domain.PriorityNormal).
		Return(&domain.EnqueueResult{Queued: false, Code: domain.EnqueueDuplicateSuppressed}, nil)

	rec, body := s.do(s.handler, http.MethodPost, "/admin/builds",
		fmt.Sprintf(`{"tenantId":%q,"reason":"profile_updated"}`, tenantID), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("DUPLICATE_SUPPRESSED", body["code"])
}

func (s *ServerTestSuite) TestEnqueueBuild_Validation() {
	rec, _ := s.do(s.handler, http.MethodPost, "/admin/builds", `{"reason":"manual_trigger"}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec, _ = s.do(s.handler, http.MethodPost, "/admin/builds",
		fmt.Sprintf(`{"tenantId":%q,"reason":"manual_trigger","priority":9}`, uuid.New()), nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestEnqueueBuild_ServiceRejection() {
	s.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("enqueue: %w", service.ErrEmptyReason))

	rec, _ := s.do(s.handler, http.MethodPost, "/admin/builds",
		fmt.Sprintf(`{"tenantId":%q,"reason":" "}`, uuid.New()), nil)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestPublishGlobalContent() {
	s.queue.EXPECT().BroadcastGlobalContentRebuild(gomock.Any(), "footer").
		Return(&domain.BroadcastResult{Queued: 37, Errors: 0}, nil)

	rec, body := s.do(s.handler, http.MethodPost, "/admin/global-content/footer/publish", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(float64(37), body["queued"])
	s.Equal(float64(0), body["errors"])
}

func (s *ServerTestSuite) TestPublishGlobalContent_UnknownType() {
	rec, _ := s.do(s.handler, http.MethodPost, "/admin/global-content/sidebar/publish", "", nil)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestBuildStats() {
	s.queue.EXPECT().Stats(gomock.Any()).Return(&domain.QueueStats{Queued: 4, Building: 1, CompletedToday: 10, FailedToday: 2}, nil)

	rec, body := s.do(s.handler, http.MethodGet, "/admin/builds/stats", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(float64(4), body["queued"])
	s.Equal(float64(2), body["failed_today"])
}

func (s *ServerTestSuite) TestGetBuild() {
	id := uuid.New()
	url := "https://jane.example.co.uk"

	s.queue.EXPECT().Get(gomock.Any(), id).Return(&domain.BuildRequest{
		ID:            id,
		TenantID:      uuid.New(),
		TriggerReason: domain.TriggerManual,
		Priority:      domain.PriorityHigh,
		Status:        domain.BuildStatusCompleted,
		BuildURL:      &url,
	}, nil)

	rec, body := s.do(s.handler, http.MethodGet, "/admin/builds/"+id.String(), "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(id.String(), body["id"])
	s.Equal("completed", body["status"])
	s.Equal(url, body["buildUrl"])
	s.NotContains(body, "errorMessage")
}

func (s *ServerTestSuite) TestGetBuild_NotFoundAndBadID() {
	id := uuid.New()
	s.queue.EXPECT().Get(gomock.Any(), id).Return(nil, nil)

	rec, _ := s.do(s.handler, http.MethodGet, "/admin/builds/"+id.String(), "", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec, _ = s.do(s.handler, http.MethodGet, "/admin/builds/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestGetProperty() {
	id := uuid.New()
	s.properties.EXPECT().Property(gomock.Any(), "4521").Return(&domain.Property{
		ID:         id,
		ExternalID: "4521",
		Title:      "2 bed flat",
		Price:      450000,
		Status:     domain.PropertySold,
	}, nil)
	s.properties.EXPECT().Property(gomock.Any(), "77").Return(nil, nil)

	rec, body := s.do(s.handler, http.MethodGet, "/admin/properties/4521", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(id.String(), body["id"])
	s.Equal("sold", body["status"])
	s.Equal(float64(450000), body["price"])

	rec, _ = s.do(s.handler, http.MethodGet, "/admin/properties/77", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec, _ = s.do(s.handler, http.MethodGet, "/admin/properties/abc", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestHealth() {
	s.db.EXPECT().PingContext(gomock.Any()).Return(nil)
	rec, _ := s.do(s.handler, http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	s.db.EXPECT().PingContext(gomock.Any()).Return(errors.New("down"))
	rec, _ = s.do(s.handler, http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *ServerTestSuite) TestMetricsEndpoint() {
	rec, _ := s.do(s.handler, http.MethodGet, "/metrics", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "go_goroutines")
}
