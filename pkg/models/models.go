package models

import (
	"time"
)

// ActionStatus is the lifecycle state of a ledger action.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusError     ActionStatus = "error"
)

// Action is the audit record of one dispatch invocation. It is created in
// pending state before any handler logic runs and transitions exactly once
// to completed or error. Only the dispatcher writes it.
type Action struct {
	ID           string         `json:"action_id"`
	TenantID     string         `json:"tenant_id"`
	Intent       string         `json:"intent"`
	Status       ActionStatus   `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	InputContext map[string]any `json:"input_context,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Terminal reports whether the action has reached a final state.
func (a *Action) Terminal() bool {
	return a.Status == ActionStatusCompleted || a.Status == ActionStatusError
}

// Result is the JSON-serializable mapping returned by every handler.
// It always carries a "status" key.
type Result map[string]any

// Status returns the result's status field, or "" if unset.
func (r Result) Status() string {
	s, _ := r["status"].(string)
	return s
}

// Completed builds a success result from the given fields.
func Completed(fields map[string]any) Result {
	r := Result{"status": "completed"}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// Errored builds an error result with a human-readable message.
func Errored(message string) Result {
	return Result{"status": "error", "message": message}
}

// Guest is the optional nested guest record inside TenantState.
type Guest struct {
	Name     string   `json:"name,omitempty"`
	Language string   `json:"language,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// AI operating modes for a tenant.
const (
	AIModeAssist     = "assist"
	AIModeAggressive = "aggressive"
)

// TenantState is the mutable per-tenant context singleton consulted by
// decision logic. A read for a missing tenant yields DefaultTenantState,
// never an error.
type TenantState struct {
	TenantID           string    `json:"tenant_id"`
	OccupancyRate      int       `json:"occupancy_rate"`
	Season             string    `json:"season"`
	PendingTasks       []string  `json:"pending_tasks"`
	LastAction         string    `json:"last_action,omitempty"`
	AIMode             string    `json:"ai_mode"`
	CurrentGuest       *Guest    `json:"current_guest,omitempty"`
	NegativeFeedback30 int       `json:"negative_feedback_30d"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultTenantState returns the documented defaults for a tenant with no
// persisted state yet.
func DefaultTenantState(tenantID string) *TenantState {
	return &TenantState{
		TenantID:      tenantID,
		OccupancyRate: 0,
		Season:        "media",
		PendingTasks:  []string{},
		AIMode:        AIModeAssist,
		UpdatedAt:     time.Now().UTC(),
	}
}

// MemoryEntry is a derived, read-only view over recent tenant activity.
// It is recomputed per read and never persisted as its own entity.
type MemoryEntry struct {
	Type      string     `json:"type"`
	Output    any        `json:"output"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Document is a generated artifact (report, check-in confirmation, ...)
// stored per tenant and merged into short-term memory.
type Document struct {
	ID          string    `json:"document_id"`
	TenantID    string    `json:"tenant_id"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
	LinkedRef   string    `json:"linked_ref,omitempty"`
}

// EventStatus advances monotonically: pending -> dispatched -> done|error.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusDispatched EventStatus = "dispatched"
	EventStatusDone       EventStatus = "done"
	EventStatusError      EventStatus = "error"
)

// Event is an asynchronous handoff record: one handler schedules another
// intent, the scanner (or the event handler itself) dispatches it later.
type Event struct {
	ID             string         `json:"event_id"`
	TenantID       string         `json:"tenant_id"`
	Trigger        string         `json:"trigger"`
	NextAgent      string         `json:"next_agent"`
	Params         map[string]any `json:"params,omitempty"`
	Status         EventStatus    `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	DispatchedAt   *time.Time     `json:"dispatched_at,omitempty"`
	LinkedActionID string         `json:"linked_action_id,omitempty"`
}

// ProposalStatus transitions waiting -> accepted|rejected exactly once.
type ProposalStatus string

const (
	ProposalStatusWaiting  ProposalStatus = "waiting"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Proposal is a pending action awaiting user confirmation before dispatch.
type Proposal struct {
	ID             string         `json:"pending_id"`
	TenantID       string         `json:"tenant_id"`
	Intent         string         `json:"intent"`
	Context        map[string]any `json:"context,omitempty"`
	Status         ProposalStatus `json:"status"`
	SuggestionText string         `json:"suggestion_text,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	HandledAt      *time.Time     `json:"handled_at,omitempty"`
}

// Insight categories and severities.
const (
	InsightCategoryOpportunity = "opportunity"
	InsightCategoryWarning     = "warning"
	InsightCategoryOperational = "operational"
	InsightCategoryStrategic   = "strategic"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Insight is an analytical output record produced by the insight handler
// and by autopilot runs.
type Insight struct {
	ID              string    `json:"insight_id"`
	TenantID        string    `json:"tenant_id"`
	SourceAgent     string    `json:"source_agent"`
	Comment         string    `json:"comment"`
	Note            string    `json:"note,omitempty"`
	Category        string    `json:"category"`
	Severity        string    `json:"severity"`
	Recommendations []string  `json:"recommendations,omitempty"`
	AgentsToTrigger []string  `json:"agents_to_trigger,omitempty"`
	PriorityScore   int       `json:"priority_score"`
	Duplicate       bool      `json:"duplicate"`
	CreatedAt       time.Time `json:"timestamp"`
}

// DispatchResult is the normalized response returned to every dispatch
// caller. Status is "completed" or "error"; errors carry Message, successes
// carry Output. ActionID always refers to the ledger row this call owns.
type DispatchResult struct {
	Status   string         `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Message  string         `json:"message,omitempty"`
	ActionID string         `json:"action_id"`
}
