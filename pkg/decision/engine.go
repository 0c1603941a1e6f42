package decision

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/orchestr8/engine/pkg/schema"
)

// Engine is the two-layer decision policy: a deterministic rule table
// evaluated first, an AI reasoning step only when no rule matches.
type Engine struct {
	rules    []Rule
	provider Provider
	logger   *slog.Logger
}

// NewEngine creates a decision engine with the seed rule table. provider
// may be nil, in which case the reasoning fallback always returns the
// safe fallback decision.
func NewEngine(provider Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: SeedRuleTable(), provider: provider, logger: logger}
}

// Decide evaluates the rule table in priority order and returns the
// first match; absent a match, it falls back to the AI reasoning step.
func (e *Engine) Decide(ctx context.Context, dc DecisionContext) (RoutingDecision, error) {
	for _, rule := range e.rules {
		if rule.Condition(dc) {
			return RoutingDecision{
				Action:    rule.ActionKind,
				NextAgent: rule.TargetAgent,
				Reason:    rule.Description,
				Priority:  rule.Priority,
			}, nil
		}
	}
	return e.reason(ctx, dc)
}

var availableAgents = []schema.AgentID{
	schema.AgentOrchestrator, schema.AgentPlanner, schema.AgentArchitect,
	schema.AgentUIDesigner, schema.AgentFrontendDev, schema.AgentBackendDev,
	schema.AgentTester, schema.AgentBugFixer, schema.AgentReviewer, schema.AgentCompliance,
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the routing reasoner for an agent orchestration engine. ")
	b.WriteString("Choose the next agent from this list: ")
	for i, a := range availableAgents {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(a))
	}
	b.WriteString(". Respond with a JSON object matching the RoutingDecision schema.")
	return b.String()
}

// reason constructs a sanitized provider request (no tenant identifiers
// embedded) and parses the JSON response, falling back to a safe
// default on any failure.
func (e *Engine) reason(ctx context.Context, dc DecisionContext) (RoutingDecision, error) {
	fallback := RoutingDecision{
		Action:    ActionRoute,
		NextAgent: schema.AgentPlanner,
		Priority:  50,
		Reason:    "fallback",
	}

	if e.provider == nil {
		return fallback, nil
	}

	payload := sanitizeContextForPrompt(dc)
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("failed to marshal decision context for reasoning", "error", err)
		return fallback, nil
	}

	resp, err := e.provider.Complete(ctx, ProviderRequest{
		System: systemPrompt(),
		Messages: []ProviderMessage{
			{Role: "user", Content: string(raw)},
		},
	})
	if err != nil {
		e.logger.Warn("reasoning provider call failed", "error", err)
		return fallback, nil
	}

	decision, ok := parseRoutingDecision(resp.Content)
	if !ok {
		e.logger.Warn("failed to parse routing decision from provider response")
		return fallback, nil
	}
	return decision, nil
}

// sanitizeContextForPrompt strips anything that could leak a tenant
// identifier before the context is embedded in a prompt sent upstream.
func sanitizeContextForPrompt(dc DecisionContext) map[string]any {
	return map[string]any{
		"type":                   dc.Classification.Type,
		"complexity":             dc.Classification.Complexity,
		"requires_design":        dc.Classification.RequiresDesign,
		"requires_architecture":  dc.Classification.RequiresArchitecture,
		"requires_compliance":    dc.Classification.RequiresCompliance,
		"phase":                  dc.Phase,
		"has_failures":           dc.HasFailures,
		"failure_count":          dc.FailureCount,
		"needs_approval":         dc.NeedsApproval,
		"completed_agents":       dc.CompletedAgents,
	}
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseRoutingDecision extracts a JSON object from content, tolerant of
// fenced code blocks, and decodes it leniently into a RoutingDecision.
func parseRoutingDecision(content string) (RoutingDecision, bool) {
	jsonText := content
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		jsonText = m[1]
	} else {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end < 0 || end < start {
			return RoutingDecision{}, false
		}
		jsonText = content[start : end+1]
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return RoutingDecision{}, false
	}

	var decision RoutingDecision
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decision,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return RoutingDecision{}, false
	}
	if err := dec.Decode(raw); err != nil {
		return RoutingDecision{}, false
	}
	if decision.Action == "" {
		decision.Action = ActionRoute
	}
	return decision, true
}
