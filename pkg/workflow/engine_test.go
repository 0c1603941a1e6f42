package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/pkg/activity"
	"github.com/orchestr8/engine/pkg/agentregistry"
	"github.com/orchestr8/engine/pkg/checkpoint"
	ctxmgr "github.com/orchestr8/engine/pkg/context"
	"github.com/orchestr8/engine/pkg/decision"
	"github.com/orchestr8/engine/pkg/schema"
)

// scriptedAgent always succeeds and records how many times it ran.
type scriptedAgent struct {
	id    schema.AgentID
	calls int
}

func (a *scriptedAgent) Metadata() agentregistry.Metadata {
	return agentregistry.Metadata{ID: a.id, Name: string(a.id)}
}

func (a *scriptedAgent) Execute(_ context.Context, _ agentregistry.AgentRequest) (schema.AgentOutput, error) {
	a.calls++
	return schema.AgentOutput{Agent: a.id, Success: true, Result: "ok"}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	registry := agentregistry.New()
	for _, id := range []schema.AgentID{
		schema.AgentPlanner, schema.AgentArchitect, schema.AgentUIDesigner,
		schema.AgentFrontendDev, schema.AgentBackendDev, schema.AgentTester,
		schema.AgentReviewer, schema.AgentCompliance, schema.AgentBugFixer,
	} {
		id := id
		err := registry.Register(id, agentregistry.Metadata{ID: id}, func() (agentregistry.Agent, error) {
			return &scriptedAgent{id: id}, nil
		})
		require.NoError(t, err)
	}
	registry.Seal()

	ctxMgr := ctxmgr.NewManager(ctxmgr.DefaultBudget(), nil)
	router := agentregistry.NewRouter(registry, ctxMgr, nil)
	decisions := decision.NewEngine(nil, nil)
	activityMgr, err := activity.NewManager("", 0, nil)
	require.NoError(t, err)

	return NewEngine(decisions, router, activityMgr, nil, nil, checkpointConfigFor(t))
}

func checkpointConfigFor(t *testing.T) checkpoint.Config {
	t.Helper()
	return checkpoint.Config{BaseDir: t.TempDir()}
}

func TestLinearHappyPathReachesComplete(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Start(context.Background(), StartRequest{
		TenantID:  "tenant-1",
		ProjectID: "proj-1",
		Prompt:    "build a thing",
		Settings:  DefaultSettings(),
	})
	require.NoError(t, err)
	require.True(t, result.Done)
	require.Equal(t, schema.PhaseComplete, result.Task.Phase)
	require.NotNil(t, result.Task.Outcome)
	require.Equal(t, schema.OutcomeSuccess, *result.Task.Outcome)
	require.Contains(t, result.Task.CompletedAgents, schema.AgentBackendDev)
	require.Contains(t, result.Task.CompletedAgents, schema.AgentTester)
	require.Contains(t, result.Task.CompletedAgents, schema.AgentReviewer)
}

func TestCancelMarksFailed(t *testing.T) {
	// a paused workflow is the simplest way to keep a run addressable
	// after Start returns, since the happy path above runs to completion
	// synchronously.
	registry := agentregistry.New()
	err := registry.Register(schema.AgentPlanner, agentregistry.Metadata{ID: schema.AgentPlanner}, func() (agentregistry.Agent, error) {
		return &pausingAgent{}, nil
	})
	require.NoError(t, err)
	registry.Seal()

	ctxMgr := ctxmgr.NewManager(ctxmgr.DefaultBudget(), nil)
	router := agentregistry.NewRouter(registry, ctxMgr, nil)
	e2 := NewEngine(decision.NewEngine(nil, nil), router, nil, nil, nil, checkpointConfigFor(t))

	result, err := e2.Start(context.Background(), StartRequest{
		TenantID: "tenant-1", ProjectID: "proj-1", Prompt: "needs approval", Settings: DefaultSettings(),
	})
	require.NoError(t, err)
	require.Equal(t, schema.PhasePaused, result.Task.Phase)
	require.NotNil(t, result.ApprovalRequest)

	err = e2.Cancel(result.Task.ID)
	require.NoError(t, err)
	require.Equal(t, schema.PhaseFailed, result.Task.Phase)
	require.Equal(t, schema.OutcomeAborted, *result.Task.Outcome)
}

// pausingAgent signals NeedsApproval on its first (and only expected)
// call so the decision engine's "needs-approval" rule fires next turn.
type pausingAgent struct{}

func (a *pausingAgent) Metadata() agentregistry.Metadata {
	return agentregistry.Metadata{ID: schema.AgentPlanner}
}

func (a *pausingAgent) Execute(_ context.Context, _ agentregistry.AgentRequest) (schema.AgentOutput, error) {
	return schema.AgentOutput{
		Agent:   schema.AgentPlanner,
		Success: true,
		Result:  "awaiting sign-off",
		Hints:   schema.RoutingHints{NeedsApproval: true},
	}, nil
}
