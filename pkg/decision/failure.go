package decision

import "github.com/orchestr8/engine/pkg/schema"

// Strategy is the recommended recovery action for a failed agent output.
type Strategy string

const (
	StrategyRetry    Strategy = "retry"
	StrategyFix      Strategy = "fix"
	StrategyEscalate Strategy = "escalate"
	StrategyAbort    Strategy = "abort"
	StrategySkip     Strategy = "skip"
)

// FailureAnalysis is the result of analyzing one failed AgentOutput.
type FailureAnalysis struct {
	Strategy          Strategy
	Reason            string
	SuggestedAgent    schema.AgentID
	RequiresUserInput bool
}

// AnalyzeFailure evaluates the failure-analysis decision table top-down;
// the first match wins.
func AnalyzeFailure(output schema.AgentOutput, dc DecisionContext) FailureAnalysis {
	if output.Error == nil {
		return FailureAnalysis{Strategy: StrategyRetry, Reason: "no error recorded"}
	}

	switch output.Error.Code {
	case schema.ErrorCodeSecurityViolation:
		return FailureAnalysis{
			Strategy:          StrategyAbort,
			Reason:            "security violation",
			RequiresUserInput: true,
		}
	case schema.ErrorCodeTestFailure:
		return FailureAnalysis{
			Strategy:       StrategyFix,
			Reason:         "test failure",
			SuggestedAgent: schema.AgentBugFixer,
		}
	}

	if output.Error.Recoverable && dc.FailureCount < 3 {
		return FailureAnalysis{Strategy: StrategyRetry, Reason: "recoverable error, retrying"}
	}
	if dc.FailureCount >= 3 {
		return FailureAnalysis{
			Strategy:          StrategyEscalate,
			Reason:            "failure count exceeds threshold",
			RequiresUserInput: true,
		}
	}
	return FailureAnalysis{Strategy: StrategyRetry, Reason: "default retry"}
}
