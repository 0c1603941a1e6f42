// Package context implements the context manager: token-budgeted,
// priority-ordered context curation from pluggable ContextSources.
package context

import (
	stdctx "context"
	"time"
)

// Type identifies a kind of context item (current_task, project_config,
// source_code, lessons_learned, agent_outputs, ...). It is an open
// string enum so new context types can be introduced by a ContextSource
// without a central registry edit.
type Type string

const (
	TypeCurrentTask    Type = "current_task"
	TypeProjectConfig  Type = "project_config"
	TypeSourceCode     Type = "source_code"
	TypeLessonsLearned Type = "lessons_learned"
	TypeAgentOutputs   Type = "agent_outputs"
)

// Item is one piece of curated context.
type Item struct {
	Type    Type           `json:"type"`
	Content string         `json:"content"`
	Score   float64        `json:"score,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// SourceParams is the request shape passed to a ContextSource.Fetch:
// tenantId and projectId must be non-empty (their format is not
// checked), query is capped at 10000 chars,
// maxItems must fall in [1,100], and scoreThreshold in [0,1].
type SourceParams struct {
	TenantID      string
	ProjectID     string
	Query         string
	MaxItems      int
	Filter        map[string]string
	ScoreThreshold float64
}

// Validate enforces the SourceParams schema bounds.
func (p SourceParams) Validate() error {
	if p.TenantID == "" || p.ProjectID == "" {
		return errValidation("tenantId and projectId are required")
	}
	if len(p.Query) > 10_000 {
		return errValidation("query exceeds 10000 characters")
	}
	if p.MaxItems < 1 || p.MaxItems > 100 {
		return errValidation("maxItems must be in [1,100]")
	}
	if p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		return errValidation("scoreThreshold must be in [0,1]")
	}
	return nil
}

// Source is a pluggable producer of context items for a given type.
type Source interface {
	Type() Type
	Fetch(ctx stdctx.Context, params SourceParams) ([]Item, error)
	IsAvailable() bool
}

// Requirement describes one context type an agent declares in its
// metadata: whether it is required, and item/filter bounds.
type Requirement struct {
	Type     Type
	Required bool
	MaxItems int
	Filter   map[string]string
}

// Budget configures curateContext's token accounting.
type Budget struct {
	TotalTokens     int
	PerTypeTokens   map[Type]int
	PriorityOrder   []Type
}

// DefaultBudget returns the documented defaults: 8000 total tokens, no
// per-type override (falls back to total), priority order starting
// with current_task.
func DefaultBudget() Budget {
	return Budget{
		TotalTokens: 8000,
		PerTypeTokens: map[Type]int{},
		PriorityOrder: []Type{
			TypeCurrentTask,
			TypeProjectConfig,
			TypeSourceCode,
			TypeLessonsLearned,
			TypeAgentOutputs,
		},
	}
}

// CuratedContext is the curateContext result.
type CuratedContext struct {
	Items           []Item
	MissingRequired []Type
	Truncated       map[Type]bool
	TotalTokens     int
}

type cacheEntry struct {
	items     []Item
	expiresAt time.Time
}
