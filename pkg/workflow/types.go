// Package workflow implements the workflow state machine: phase
// transitions, approval suspension, retry/escalate/abort, and
// resume-from-checkpoint.
package workflow

import (
	"time"

	"github.com/orchestr8/engine/pkg/schema"
)

// Settings configures one workflow run.
type Settings struct {
	StylePackageCount      int  `koanf:"stylepackagecount"`
	ParallelDesignerCount  int  `koanf:"paralleldesignercount"`
	EnableStyleCompetition bool `koanf:"enablestylecompetition"`
	MaxStyleRejections     int  `koanf:"maxstylerejections"`
	ProviderTimeoutMs      int  `koanf:"providertimeoutms"`
	MaxIterations          int  `koanf:"maxiterations"`
}

// DefaultSettings returns the documented defaults, with the style
// coercion rule applied: when EnableStyleCompetition is false,
// StylePackageCount and ParallelDesignerCount are forced to 1.
func DefaultSettings() Settings {
	s := Settings{
		StylePackageCount:      1,
		ParallelDesignerCount:  1,
		EnableStyleCompetition: false,
		MaxStyleRejections:     5,
		ProviderTimeoutMs:      900_000,
		MaxIterations:          50,
	}
	s.Coerce()
	return s
}

// Coerce applies the documented settings coercions and bounds clamps.
func (s *Settings) Coerce() {
	if s.MaxIterations <= 0 {
		s.MaxIterations = 50
	}
	if s.StylePackageCount < 1 {
		s.StylePackageCount = 1
	}
	if s.StylePackageCount > 10 {
		s.StylePackageCount = 10
	}
	if s.ParallelDesignerCount < 1 {
		s.ParallelDesignerCount = 1
	}
	if s.ParallelDesignerCount > 15 {
		s.ParallelDesignerCount = 15
	}
	if s.MaxStyleRejections < 1 {
		s.MaxStyleRejections = 1
	}
	if s.MaxStyleRejections > 10 {
		s.MaxStyleRejections = 10
	}
	if s.ProviderTimeoutMs < 60_000 {
		s.ProviderTimeoutMs = 60_000
	}
	if s.ProviderTimeoutMs > 1_800_000 {
		s.ProviderTimeoutMs = 1_800_000
	}
	if !s.EnableStyleCompetition {
		s.StylePackageCount = 1
		s.ParallelDesignerCount = 1
	}
}

// StartRequest is the input to Engine.Start.
type StartRequest struct {
	TenantID  string
	ProjectID string
	TaskID    string
	Prompt    string
	Settings  Settings
}

// ApprovalRequest is constructed when the engine pauses for human
// input.
type ApprovalRequest struct {
	WorkflowID string
	AgentID    schema.AgentID
	Payload    map[string]any
	CreatedAt  time.Time
}

// ApprovalResponse is the external reply to an ApprovalRequest.
type ApprovalResponse struct {
	Approved       bool
	SelectedOption string
	Feedback       string
}

// Result is the outcome of a Start/Resume/SubmitApproval call.
type Result struct {
	Task            *schema.Task
	ApprovalRequest *ApprovalRequest
	Done            bool
}
