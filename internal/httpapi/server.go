package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentsites/internal/domain"
	"agentsites/internal/service"
	"agentsites/internal/source/apex27"
)

const (
	maxBodyBytes    = 1 << 20
	signatureHeader = "X-Webhook-Signature"
)

var validate = validator.New()

// Server exposes the listing webhook and the build queue admin endpoints.
type Server struct {
	properties    PropertySync
	queue         BuildQueue
	db            Pinger
	webhookSecret string
	logger        *slog.Logger
}

// NewServer wires the handlers. An empty webhookSecret accepts unsigned
// webhook deliveries.
func NewServer(properties PropertySync, queue BuildQueue, db Pinger, webhookSecret string, logger *slog.Logger) *Server {
	return &Server{
		properties:    properties,
		queue:         queue,
		db:            db,
		webhookSecret: webhookSecret,
		logger:        logger.With("component", "http"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/apex27", s.handleApex27Webhook)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/builds", s.handleEnqueueBuild)
		r.Get("/builds/stats", s.handleBuildStats)
		r.Get("/builds/{id}", s.handleGetBuild)
		r.Get("/properties/{listingId}", s.handleGetProperty)
		r.Post("/global-content/{type}/publish", s.handlePublishGlobalContent)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type webhookResponse struct {
	Success    bool        `json:"success"`
	Skipped    bool        `json:"skipped,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	PropertyID *uuid.UUID  `json:"propertyId,omitempty"`
	ListingID  string      `json:"listingId,omitempty"`
	BranchID   json.Number `json:"branchId,omitempty"`
}

// handleApex27Webhook always answers 200 once the payload is understood, even
// if processing fails, so the upstream does not redeliver.
func (s *Server) handleApex27Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "Invalid request body"})
		return
	}

	if s.webhookSecret != "" && !apex27.VerifySignature(body, r.Header.Get(signatureHeader), s.webhookSecret) {
		s.logger.Warn("rejected webhook with bad signature", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Error: "Invalid signature"})
		return
	}

	event, err := apex27.ParseWebhook(body)
	if err != nil {
		if errors.Is(err, apex27.ErrUnknownAction) || errors.Is(err, apex27.ErrInvalidPayload) {
			writeJSON(w, http.StatusBadRequest, webhookResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "Invalid request body"})
		return
	}

	outcome, err := s.properties.HandleEvent(r.Context(), *event)
	if err != nil {
		s.logger.Error("failed to process webhook",
			"action", event.Action,
			"listing_id", event.Listing.ExternalID,
			"error", err,
		)
		writeJSON(w, http.StatusOK, webhookResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Success:    outcome.Success,
		Skipped:    outcome.Skipped,
		Message:    outcome.Message,
		PropertyID: outcome.PropertyID,
		ListingID:  outcome.ListingID,
		BranchID:   json.Number(outcome.BranchID),
	})
}

type enqueueRequest struct {
	TenantID uuid.UUID `json:"tenantId" validate:"required"`
	Reason   string    `json:"reason" validate:"required"`
	Priority int       `json:"priority" validate:"min=1,max=4"`
}

func (s *Server) handleEnqueueBuild(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Priority == 0 {
		req.Priority = int(domain.PriorityNormal)
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.queue.Enqueue(r.Context(), req.TenantID, req.Reason, domain.BuildPriority(req.Priority))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPriority) || errors.Is(err, service.ErrEmptyReason) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to enqueue build", "agent_id", req.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue build")
		return
	}

	status := http.StatusOK
	if result.Queued {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *Server) handleBuildStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to read queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type buildResponse struct {
	ID            uuid.UUID            `json:"id"`
	AgentID       uuid.UUID            `json:"agentId"`
	TriggerReason string               `json:"triggerReason"`
	Priority      domain.BuildPriority `json:"priority"`
	Status        domain.BuildStatus   `json:"status"`
	CreatedAt     time.Time            `json:"createdAt"`
	StartedAt     *time.Time           `json:"startedAt,omitempty"`
	CompletedAt   *time.Time           `json:"completedAt,omitempty"`
	BuildURL      *string              `json:"buildUrl,omitempty"`
	ErrorMessage  *string              `json:"errorMessage,omitempty"`
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid build id")
		return
	}

	build, err := s.queue.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to read build", "build_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read build")
		return
	}
	if build == nil {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}

	writeJSON(w, http.StatusOK, buildResponse{
		ID:            build.ID,
		AgentID:       build.TenantID,
		TriggerReason: build.TriggerReason,
		Priority:      build.Priority,
		Status:        build.Status,
		CreatedAt:     build.CreatedAt,
		StartedAt:     build.StartedAt,
		CompletedAt:   build.CompletedAt,
		BuildURL:      build.BuildURL,
		ErrorMessage:  build.ErrorMessage,
	})
}

type propertyResponse struct {
	ID              uuid.UUID              `json:"id"`
	AgentID         uuid.UUID              `json:"agentId"`
	ListingID       string                 `json:"listingId"`
	TransactionType domain.TransactionType `json:"transactionType"`
	Title           string                 `json:"title"`
	Price           float64                `json:"price"`
	Status          domain.PropertyStatus  `json:"status"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingId")
	if err := validate.Var(listingID, "required,numeric"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	p, err := s.properties.Property(r.Context(), listingID)
	if err != nil {
		s.logger.Error("failed to read property", "listing_id", listingID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read property")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	writeJSON(w, http.StatusOK, propertyResponse{
		ID:              p.ID,
		AgentID:         p.AgentID,
		ListingID:       p.ExternalID,
		TransactionType: p.TransactionType,
		Title:           p.Title,
		Price:           p.Price,
		Status:          p.Status,
		UpdatedAt:       p.UpdatedAt,
	})
}

func (s *Server) handlePublishGlobalContent(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "type")
	if err := validate.Var(contentType, "required,oneof=header footer privacy_policy terms_of_service cookie_policy complaints_procedure"); err != nil {
		writeError(w, http.StatusBadRequest, "unknown global content type")
		return
	}

	result, err := s.queue.BroadcastGlobalContentRebuild(r.Context(), contentType)
	if err != nil {
		s.logger.Error("failed to broadcast rebuild", "content_type", contentType, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue rebuilds")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
