package schema

import "time"

// EventType enumerates the activity event types (non-exhaustive; new
// types may be added by agents without breaking existing subscribers).
type EventType string

const (
	EventWorkflowStart    EventType = "workflow_start"
	EventWorkflowComplete EventType = "workflow_complete"
	EventWorkflowError    EventType = "workflow_error"
	EventAgentThinking    EventType = "agent_thinking"
	EventAgentStart       EventType = "agent_start"
	EventAgentComplete    EventType = "agent_complete"
	EventFileWrite        EventType = "file_write"
	EventUserApproval     EventType = "user_approval"
	EventCheckpointSaved  EventType = "checkpoint_saved"
	EventProgress         EventType = "progress"
)

// EventCategory groups event types for filtering.
type EventCategory string

const (
	CategoryWorkflow EventCategory = "workflow"
	CategoryAgent    EventCategory = "agent"
	CategoryFile     EventCategory = "file"
	CategoryGit      EventCategory = "git"
	CategoryUser     EventCategory = "user"
	CategorySystem   EventCategory = "system"
	CategoryProgress EventCategory = "progress"
	CategoryDesign   EventCategory = "design"
)

// Severity is the event's log-level-like severity.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Progress carries optional current/total progress on a long-running
// step.
type Progress struct {
	Current    int     `json:"current"`
	Total      int      `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ActivityEvent is an immutable, ordered record of something that
// happened during a workflow run.
type ActivityEvent struct {
	Sequence      uint64         `json:"sequence"`
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Type          EventType      `json:"type"`
	Category      EventCategory  `json:"category"`
	Severity      Severity       `json:"severity"`
	SessionID     string         `json:"session_id"`
	WorkflowID    string         `json:"workflow_id"`
	AgentID       string         `json:"agent_id,omitempty"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	Progress      *Progress      `json:"progress,omitempty"`
	Duration      *time.Duration `json:"duration,omitempty"`
	ParentID      string         `json:"parent_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}
