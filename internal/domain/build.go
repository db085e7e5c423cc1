package domain

import (
	"time"

	"github.com/google/uuid"
)

// BuildStatus is the lifecycle state of a build_queue row.
type BuildStatus string

const (
	BuildStatusQueued    BuildStatus = "queued"
	BuildStatusBuilding  BuildStatus = "building"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusFailed    BuildStatus = "failed"
)

// BuildPriority orders rebuild requests. Lower number = more urgent.
type BuildPriority int

const (
	PriorityEmergency BuildPriority = 1 // global content changes affecting all agents
	PriorityHigh      BuildPriority = 2
	PriorityNormal    BuildPriority = 3 // content approval, standard updates
	PriorityLow       BuildPriority = 4 // profile updates, minor changes
)

func (p BuildPriority) Valid() bool {
	return p >= PriorityEmergency && p <= PriorityLow
}

// Trigger reasons recorded on build requests.
const (
	TriggerContentApproved  = "content_approved"
	TriggerProfileUpdated   = "profile_updated"
	TriggerFeesUpdated      = "fees_updated"
	TriggerAgentActivated   = "agent_activated"
	TriggerManual           = "manual_trigger"
	TriggerPropertyUpdated  = "property_updated"
	TriggerGlobalContentTag = "global_content:"
)

type BuildRequest struct {
	ID            uuid.UUID     `db:"id"`
	TenantID      uuid.UUID     `db:"agent_id"`
	TriggerReason string        `db:"trigger_reason"`
	Priority      BuildPriority `db:"priority"`
	Status        BuildStatus   `db:"status"`
	CreatedAt     time.Time     `db:"created_at"`
	StartedAt     *time.Time    `db:"started_at"`
	CompletedAt   *time.Time    `db:"completed_at"`
	BuildURL      *string       `db:"build_url"`
	ErrorMessage  *string       `db:"error_message"`
	RetryCount    int           `db:"retry_count"`

	// Populated by dequeue/claim from the joined agents row.
	Subdomain    string `db:"subdomain"`
	TenantStatus string `db:"agent_status"`
}

// NewBuild is an insert request for the queue.
type NewBuild struct {
	TenantID      uuid.UUID
	TriggerReason string
	Priority      BuildPriority
}

// EnqueueCode classifies the outcome of an enqueue attempt.
type EnqueueCode string

const (
	EnqueueQueued              EnqueueCode = "QUEUED"
	EnqueueDuplicateSuppressed EnqueueCode = "DUPLICATE_SUPPRESSED"
)

type EnqueueResult struct {
	ID      *uuid.UUID  `json:"id,omitempty"`
	Queued  bool        `json:"success"`
	Code    EnqueueCode `json:"code"`
	Message string      `json:"message"`
}

// BroadcastResult counts the rows a global content fan-out inserted.
type BroadcastResult struct {
	Queued int `json:"queued"`
	Errors int `json:"errors"`
}

// Completion is the terminal outcome written back to a claimed row.
type Completion struct {
	Success      bool
	BuildURL     string
	ErrorMessage string
}

type QueueStats struct {
	Queued         int `json:"queued" db:"queued"`
	Building       int `json:"building" db:"building"`
	CompletedToday int `json:"completed_today" db:"completed_today"`
	FailedToday    int `json:"failed_today" db:"failed_today"`
}

// BuildResult is what the orchestrator reports for one build.
type BuildResult struct {
	BuildID       uuid.UUID `json:"buildId"`
	Success       bool      `json:"success"`
	DeploymentID  string    `json:"deploymentId,omitempty"`
	DeploymentURL string    `json:"deploymentUrl,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	BuildLogs     string    `json:"buildLogs,omitempty"`
}

// BuildEvent is published after a build reaches a terminal state.
type BuildEvent struct {
	BuildID       uuid.UUID `json:"build_id"`
	TenantID      uuid.UUID `json:"agent_id"`
	Subdomain     string    `json:"subdomain"`
	TriggerReason string    `json:"trigger_reason"`
	Success       bool      `json:"success"`
	DeploymentURL string    `json:"deployment_url,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}
