package schema

import "time"

// CheckpointTrigger records why a checkpoint was created.
type CheckpointTrigger string

const (
	TriggerManual            CheckpointTrigger = "manual"
	TriggerStateTransition    CheckpointTrigger = "state-transition"
	TriggerAgentComplete      CheckpointTrigger = "agent-complete"
	TriggerBeforeDestructive  CheckpointTrigger = "before-destructive"
	TriggerTimeInterval       CheckpointTrigger = "time-interval"
)

// CheckpointStatus is the validity state of a persisted checkpoint.
type CheckpointStatus string

const (
	CheckpointValid     CheckpointStatus = "valid"
	CheckpointCorrupted CheckpointStatus = "corrupted"
	CheckpointArchived  CheckpointStatus = "archived"
)

// AgentSnapshot captures one agent's status as of a checkpoint.
type AgentSnapshot struct {
	Agent          AgentID `json:"agent"`
	Status         string  `json:"status"`
	Input          string  `json:"input,omitempty"`
	OutputRedacted string  `json:"output_redacted,omitempty"`
	Attempts       int     `json:"attempts"`
	TokensUsed     int     `json:"tokens_used"`
}

// WorkflowSnapshot captures workflow state at a checkpoint, including a
// bounded transition history (Open Question 2: append-only,
// most-recent-first, capped at 100 entries).
type WorkflowSnapshot struct {
	CurrentState  Phase           `json:"current_state"`
	PreviousState Phase           `json:"previous_state"`
	History       []HistoryEntry `json:"history"`
}

// HistoryEntry is one phase transition record.
type HistoryEntry struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

const maxHistoryEntries = 100

// AppendHistory prepends an entry and truncates to the last 100
// transitions (most-recent-first).
func (w *WorkflowSnapshot) AppendHistory(e HistoryEntry) {
	w.History = append([]HistoryEntry{e}, w.History...)
	if len(w.History) > maxHistoryEntries {
		w.History = w.History[:maxHistoryEntries]
	}
}

// ContextSnapshot captures the curated-context state relevant to resume.
type ContextSnapshot struct {
	TaskDescription   string            `json:"task_description"`
	ArtifactChecksums map[string]string `json:"artifact_checksums,omitempty"`
	LessonsLearned    []string          `json:"lessons_learned,omitempty"`
	Decisions         []string          `json:"decisions,omitempty"`
}

// FilesystemSnapshot captures file mutations observed during execution.
type FilesystemSnapshot struct {
	ModifiedFiles []string `json:"modified_files,omitempty"`
	CreatedFiles  []string `json:"created_files,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
}

// IntegrityBlock holds per-snapshot and overall SHA-256 checksums
// (first 16 hex chars retained).
type IntegrityBlock struct {
	WorkflowChecksum string `json:"workflow_checksum"`
	AgentsChecksum   string `json:"agents_checksum"`
	ContextChecksum  string `json:"context_checksum"`
	FilesystemChecksum string `json:"filesystem_checksum"`
	OverallChecksum  string `json:"overall_checksum"`
}

// RecoveryBlock describes whether and how a checkpoint can be resumed.
type RecoveryBlock struct {
	CanResume        bool     `json:"can_resume"`
	ResumeFromAgent  AgentID  `json:"resume_from_agent,omitempty"`
	ResumeFromState  Phase    `json:"resume_from_state,omitempty"`
	Blockers         []string `json:"blockers,omitempty"`
}

// Checkpoint is a verifiable, immutable snapshot of workflow+agent+
// context+filesystem state at a named trigger.
type Checkpoint struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Trigger    CheckpointTrigger `json:"trigger"`
	Status     CheckpointStatus  `json:"status"`
	Workflow   WorkflowSnapshot  `json:"workflow"`
	Agents     []AgentSnapshot   `json:"agents"`
	Context    ContextSnapshot   `json:"context"`
	Filesystem FilesystemSnapshot `json:"filesystem"`
	Integrity  IntegrityBlock    `json:"integrity"`
	Recovery   RecoveryBlock     `json:"recovery"`
}
