// Package decision implements the decision engine: a priority-ordered
// deterministic rule table evaluated first, with an AI reasoning
// fallback when no rule matches, plus failure analysis.
package decision

import (
	"github.com/orchestr8/engine/pkg/agentregistry"
	"github.com/orchestr8/engine/pkg/schema"
)

// DecisionContext is the input to Decide: task classification, current
// phase, and accumulated run state.
type DecisionContext struct {
	Classification    schema.Classification
	Phase             schema.Phase
	HasFailures       bool
	FailureCount      int
	NeedsApproval     bool
	SecurityConcern   bool
	CompletedAgents   []schema.AgentID
	TotalTokensUsed   int
}

func (c DecisionContext) completed(agent schema.AgentID) bool {
	for _, a := range c.CompletedAgents {
		if a == agent {
			return true
		}
	}
	return false
}

// Action is a routing decision's effect: ActionRoute (in which case
// NextAgent is set) or one of the other actions below.
type Action string

const (
	ActionRoute    Action = "route"
	ActionPause    Action = "pause"
	ActionComplete Action = "complete"
	ActionEscalate Action = "escalate"
	ActionAbort    Action = "abort"
)

// RoutingDecision is the decision engine's output.
// Field tags drive the lenient mapstructure decode of the provider's
// JSON response in the reasoning fallback.
type RoutingDecision struct {
	Action              Action          `mapstructure:"action"`
	NextAgent           schema.AgentID  `mapstructure:"next_agent"`
	Reason              string          `mapstructure:"reason"`
	Priority            int             `mapstructure:"priority"`
	ContextRequirements []string        `mapstructure:"context_requirements"`
	AlternativeAgents   []schema.AgentID `mapstructure:"alternative_agents"`
}

// ToAgentDecision converts d to the agentregistry.Decision the router
// dispatches on, carrying only NextAgent.
func (d RoutingDecision) ToAgentDecision() agentregistry.Decision {
	return agentregistry.Decision{NextAgent: d.NextAgent}
}
