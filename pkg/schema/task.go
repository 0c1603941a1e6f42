// Package schema defines the shared value types that flow through the
// orchestration engine: tasks, agent outputs, work breakdowns, activity
// events, checkpoints, and audit events.
package schema

import (
	"regexp"
	"time"
)

// TaskType classifies the kind of work a task represents.
type TaskType string

const (
	TaskTypeFeature    TaskType = "feature"
	TaskTypeBugfix     TaskType = "bugfix"
	TaskTypeRefactor   TaskType = "refactor"
	TaskTypeResearch   TaskType = "research"
	TaskTypeDeployment TaskType = "deployment"
	TaskTypeConfig     TaskType = "config"
)

// Complexity estimates the scale of a task.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityEpic     Complexity = "epic"
)

// Phase is a workflow state machine phase.
type Phase string

const (
	PhaseAnalyzing Phase = "analyzing"
	PhasePlanning  Phase = "planning"
	PhaseDesigning Phase = "designing"
	PhaseBuilding  Phase = "building"
	PhaseTesting   Phase = "testing"
	PhaseReviewing Phase = "reviewing"
	PhaseComplete  Phase = "complete"
	PhasePaused    Phase = "paused"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase ends the workflow loop (paused is
// terminal-with-resume; complete/failed are fully terminal).
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhasePaused, PhaseFailed:
		return true
	default:
		return false
	}
}

// Outcome is a task's terminal result.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeEscalated Outcome = "escalated"
)

// AgentID is a fixed enum of known agent types (GLOSSARY).
type AgentID string

const (
	AgentOrchestrator AgentID = "orchestrator"
	AgentPlanner      AgentID = "planner"
	AgentArchitect    AgentID = "architect"
	AgentUIDesigner   AgentID = "ui_designer"
	AgentFrontendDev  AgentID = "frontend_dev"
	AgentBackendDev   AgentID = "backend_dev"
	AgentTester       AgentID = "tester"
	AgentBugFixer     AgentID = "bug_fixer"
	AgentReviewer     AgentID = "reviewer"
	AgentCompliance   AgentID = "compliance"
)

// Classification is the decision engine's view of a task's shape.
type Classification struct {
	Type                 TaskType   `json:"type"`
	Complexity           Complexity `json:"complexity"`
	RequiresDesign       bool       `json:"requires_design"`
	RequiresArchitecture bool       `json:"requires_architecture"`
	RequiresCompliance   bool       `json:"requires_compliance"`
	Confidence           float64    `json:"confidence"`
}

// Clamp coerces Confidence into [0,1], the lenient-decode behavior for
// an out-of-range numeric field.
func (c *Classification) Clamp() {
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// Task is the unit of work the workflow engine advances.
type Task struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	ProjectID        string         `json:"project_id"`
	Prompt           string         `json:"prompt"`
	Classification    Classification `json:"classification"`
	Phase            Phase          `json:"phase"`
	RetryCount       int            `json:"retry_count"`
	IterationCount   int            `json:"iteration_count"`
	CompletedAgents  []AgentID      `json:"completed_agents"`
	Outcome          *Outcome       `json:"outcome,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasCompleted reports whether the given agent already ran for this task.
func (t *Task) HasCompleted(agent AgentID) bool {
	for _, a := range t.CompletedAgents {
		if a == agent {
			return true
		}
	}
	return false
}

var idPattern = regexp.MustCompile(`^(task|feat|epic)-[a-z0-9-]+$`)

// ValidID reports whether id matches the task/feature/epic id grammar.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

var leafIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidLeafID reports whether id matches a WorkBreakdown leaf task id
// grammar.
func ValidLeafID(id string) bool {
	return leafIDPattern.MatchString(id)
}
