package decision

import (
	"sort"

	"github.com/orchestr8/engine/pkg/schema"
)

// Rule is one entry in the deterministic rule table: a priority, a
// condition, and the action to take when it matches. Rules are sorted
// ascending by priority and the first match wins.
type Rule struct {
	ID          string
	Priority    int
	Condition   func(DecisionContext) bool
	ActionKind  Action
	TargetAgent schema.AgentID // set only when ActionKind == ActionRoute
	Description string
}

// SeedRuleTable returns the documented default rule table, in priority
// order, for test compatibility.
func SeedRuleTable() []Rule {
	rules := []Rule{
		{
			ID:          "security-concern",
			Priority:    0,
			Condition:   func(c DecisionContext) bool { return c.SecurityConcern },
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentCompliance,
			Description: "security concern detected, route to compliance",
		},
		{
			ID:          "max-failures-abort",
			Priority:    5,
			Condition:   func(c DecisionContext) bool { return c.FailureCount >= 5 },
			ActionKind:  ActionAbort,
			Description: "too many failures, abort",
		},
		{
			ID:          "max-failures-escalate",
			Priority:    10,
			Condition:   func(c DecisionContext) bool { return c.FailureCount >= 3 },
			ActionKind:  ActionEscalate,
			Description: "repeated failures, escalate",
		},
		{
			ID:          "test-failure",
			Priority:    15,
			Condition:   func(c DecisionContext) bool { return c.HasFailures && c.FailureCount < 3 },
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentBugFixer,
			Description: "test failure, route to bug fixer",
		},
		{
			ID:          "needs-approval",
			Priority:    25,
			Condition:   func(c DecisionContext) bool { return c.NeedsApproval },
			ActionKind:  ActionPause,
			Description: "approval required",
		},
		{
			ID:       "needs-architecture",
			Priority: 35,
			Condition: func(c DecisionContext) bool {
				return c.Classification.RequiresArchitecture && !c.completed(schema.AgentArchitect)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentArchitect,
			Description: "architecture required",
		},
		{
			ID:       "needs-design",
			Priority: 36,
			Condition: func(c DecisionContext) bool {
				return c.Classification.RequiresDesign && !c.completed(schema.AgentUIDesigner)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentUIDesigner,
			Description: "design required",
		},
		{
			ID:       "needs-compliance",
			Priority: 37,
			Condition: func(c DecisionContext) bool {
				return c.Classification.RequiresCompliance && !c.completed(schema.AgentCompliance)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentCompliance,
			Description: "compliance review required",
		},
		{
			ID:       "ready-for-frontend",
			Priority: 45,
			Condition: func(c DecisionContext) bool {
				return c.Phase == schema.PhaseBuilding && c.completed(schema.AgentUIDesigner) && !c.completed(schema.AgentFrontendDev)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentFrontendDev,
			Description: "ready for frontend work",
		},
		{
			ID:       "ready-for-backend",
			Priority: 46,
			Condition: func(c DecisionContext) bool {
				return c.Phase == schema.PhaseBuilding && !c.completed(schema.AgentBackendDev)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentBackendDev,
			Description: "ready for backend work",
		},
		{
			ID:       "ready-for-testing",
			Priority: 55,
			Condition: func(c DecisionContext) bool {
				return c.Phase == schema.PhaseTesting &&
					(c.completed(schema.AgentFrontendDev) || c.completed(schema.AgentBackendDev)) &&
					!c.completed(schema.AgentTester)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentTester,
			Description: "ready for testing",
		},
		{
			ID:       "ready-for-review",
			Priority: 65,
			Condition: func(c DecisionContext) bool {
				return c.Phase == schema.PhaseReviewing && c.completed(schema.AgentTester) && !c.completed(schema.AgentReviewer)
			},
			ActionKind:  ActionRoute,
			TargetAgent: schema.AgentReviewer,
			Description: "ready for review",
		},
		{
			ID:       "all-complete",
			Priority: 90,
			Condition: func(c DecisionContext) bool {
				return c.completed(schema.AgentReviewer) && !c.HasFailures
			},
			ActionKind:  ActionComplete,
			Description: "workflow complete",
		},
	}

	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return rules
}
