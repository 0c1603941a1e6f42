package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/pkg/schema"
)

func TestSecurityConcernTakesPriority(t *testing.T) {
	e := NewEngine(nil, nil)
	d, err := e.Decide(context.Background(), DecisionContext{SecurityConcern: true, FailureCount: 10})
	require.NoError(t, err)
	require.Equal(t, ActionRoute, d.Action)
	require.Equal(t, schema.AgentCompliance, d.NextAgent)
}

func TestMaxFailuresAbort(t *testing.T) {
	e := NewEngine(nil, nil)
	d, err := e.Decide(context.Background(), DecisionContext{FailureCount: 5})
	require.NoError(t, err)
	require.Equal(t, ActionAbort, d.Action)
}

func TestMaxFailuresEscalate(t *testing.T) {
	e := NewEngine(nil, nil)
	d, err := e.Decide(context.Background(), DecisionContext{FailureCount: 3})
	require.NoError(t, err)
	require.Equal(t, ActionEscalate, d.Action)
}

func TestFailureCountTwoRoutesBugFixer(t *testing.T) {
	e := NewEngine(nil, nil)
	d, err := e.Decide(context.Background(), DecisionContext{FailureCount: 2, HasFailures: true})
	require.NoError(t, err)
	require.Equal(t, schema.AgentBugFixer, d.NextAgent)
}

func TestLinearHappyPath(t *testing.T) {
	e := NewEngine(nil, nil)
	dc := DecisionContext{
		Classification: schema.Classification{RequiresDesign: true, RequiresArchitecture: true},
		Phase:          schema.PhaseAnalyzing,
	}

	d, err := e.Decide(context.Background(), dc)
	require.NoError(t, err)
	require.Equal(t, schema.AgentArchitect, d.NextAgent)
	dc.CompletedAgents = append(dc.CompletedAgents, schema.AgentArchitect)

	d, err = e.Decide(context.Background(), dc)
	require.NoError(t, err)
	require.Equal(t, schema.AgentUIDesigner, d.NextAgent)
	dc.CompletedAgents = append(dc.CompletedAgents, schema.AgentUIDesigner)

	dc.Phase = schema.PhaseBuilding
	d, err = e.Decide(context.Background(), dc)
	require.NoError(t, err)
	require.Equal(t, schema.AgentFrontendDev, d.NextAgent)
	dc.CompletedAgents = append(dc.CompletedAgents, schema.AgentFrontendDev)

	dc.Phase = schema.PhaseTesting
	d, err = e.Decide(context.Background(), dc)
	require.NoError(t, err)
	require.Equal(t, schema.AgentTester, d.NextAgent)
	dc.CompletedAgents = append(dc.CompletedAgents, schema.AgentTester)

	dc.Phase = schema.PhaseReviewing
	d, err = e.Decide(context.Background(), dc)
	require.NoError(t, err)
	require.Equal(t, schema.AgentReviewer, d.NextAgent)
	dc.CompletedAgents = append(dc.CompletedAgents, schema.AgentReviewer)

	d, err = e.Decide(context.Background(), dc)
	require.NoError(t, err)
	require.Equal(t, ActionComplete, d.Action)
}

func TestReasoningFallbackNoProvider(t *testing.T) {
	e := NewEngine(nil, nil)
	d, err := e.Decide(context.Background(), DecisionContext{Phase: schema.PhaseAnalyzing})
	require.NoError(t, err)
	require.Equal(t, schema.AgentPlanner, d.NextAgent)
	require.Equal(t, "fallback", d.Reason)
}

type stubProvider struct{ content string }

func (s stubProvider) Complete(_ context.Context, _ ProviderRequest) (ProviderResponse, error) {
	return ProviderResponse{Content: s.content}, nil
}

func TestReasoningFallbackParsesFencedJSON(t *testing.T) {
	e := NewEngine(stubProvider{content: "```json\n{\"action\":\"route\",\"next_agent\":\"architect\",\"priority\":40}\n```"}, nil)
	d, err := e.Decide(context.Background(), DecisionContext{Phase: schema.PhaseAnalyzing})
	require.NoError(t, err)
	require.Equal(t, schema.AgentArchitect, d.NextAgent)
	require.Equal(t, 40, d.Priority)
}

func TestReasoningFallbackOnParseFailure(t *testing.T) {
	e := NewEngine(stubProvider{content: "not json at all"}, nil)
	d, err := e.Decide(context.Background(), DecisionContext{Phase: schema.PhaseAnalyzing})
	require.NoError(t, err)
	require.Equal(t, schema.AgentPlanner, d.NextAgent)
}

func TestAnalyzeFailureSecurityViolation(t *testing.T) {
	fa := AnalyzeFailure(schema.AgentOutput{Error: &schema.AgentError{Code: schema.ErrorCodeSecurityViolation}}, DecisionContext{})
	require.Equal(t, StrategyAbort, fa.Strategy)
	require.True(t, fa.RequiresUserInput)
}

func TestAnalyzeFailureTestFailure(t *testing.T) {
	fa := AnalyzeFailure(schema.AgentOutput{Error: &schema.AgentError{Code: schema.ErrorCodeTestFailure}}, DecisionContext{})
	require.Equal(t, StrategyFix, fa.Strategy)
	require.Equal(t, schema.AgentBugFixer, fa.SuggestedAgent)
}

func TestAnalyzeFailureEscalateAtThree(t *testing.T) {
	fa := AnalyzeFailure(schema.AgentOutput{
		Error: &schema.AgentError{Code: schema.ErrorCodeGeneric, Recoverable: true},
	}, DecisionContext{FailureCount: 3})
	require.Equal(t, StrategyEscalate, fa.Strategy)
	require.True(t, fa.RequiresUserInput)
}
