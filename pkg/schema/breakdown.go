package schema

// BreakdownTaskType classifies a leaf task within a WorkBreakdown.
type BreakdownTaskType string

const (
	BreakdownDesign        BreakdownTaskType = "design"
	BreakdownFrontend      BreakdownTaskType = "frontend"
	BreakdownBackend       BreakdownTaskType = "backend"
	BreakdownDatabase      BreakdownTaskType = "database"
	BreakdownTesting       BreakdownTaskType = "testing"
	BreakdownIntegration   BreakdownTaskType = "integration"
	BreakdownDocumentation BreakdownTaskType = "documentation"
	BreakdownDevops        BreakdownTaskType = "devops"
	BreakdownReview        BreakdownTaskType = "review"
)

// LeafTask is one unit of work inside a Feature, matching
// `^[a-z][a-z0-9-]*$` for its id.
type LeafTask struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Type               BreakdownTaskType `json:"type"`
	Complexity         Complexity        `json:"complexity"`
	Dependencies       []string          `json:"dependencies,omitempty"`
	AcceptanceCriteria []string          `json:"acceptance_criteria,omitempty"`
	AssignedAgents     []AgentID         `json:"assigned_agents,omitempty"`
	ComplianceRelevant bool              `json:"compliance_relevant"`
}

// Feature groups related leaf tasks.
type Feature struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Tasks []LeafTask `json:"tasks"`
}

// Epic is the top level of a work breakdown hierarchy.
type Epic struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Features []Feature `json:"features"`
}

// WorkBreakdown is the Epic -> Feature -> LeafTask hierarchy produced by
// planning.
type WorkBreakdown struct {
	Epics []Epic `json:"epics"`
}

// AllLeafTasks flattens the hierarchy into its leaf tasks, the unit the
// dependency graph scheduler operates on.
func (w *WorkBreakdown) AllLeafTasks() []LeafTask {
	var out []LeafTask
	for _, e := range w.Epics {
		for _, f := range e.Features {
			out = append(out, f.Tasks...)
		}
	}
	return out
}
