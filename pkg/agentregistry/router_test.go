package agentregistry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ctxmgr "github.com/orchestr8/engine/pkg/context"
	"github.com/orchestr8/engine/pkg/schema"
)

func newTestRouter(t *testing.T) (*Router, *Registry) {
	reg := New()
	require.NoError(t, reg.Register(schema.AgentTester, Metadata{ID: schema.AgentTester}, func() (Agent, error) {
		return &stubAgent{meta: Metadata{ID: schema.AgentTester}}, nil
	}))
	reg.Seal()

	cm := ctxmgr.NewManager(ctxmgr.DefaultBudget(), nil)
	return NewRouter(reg, cm, nil), reg
}

func validAuth() Auth {
	return Auth{TenantID: "t1", UserID: "u1", SessionID: "s1"}
}

func TestValidateAuthRejectsMissingFields(t *testing.T) {
	err := ValidateAuth(Auth{}, time.Now())
	require.Error(t, err)
}

func TestValidateAuthRejectsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour).Unix()
	err := ValidateAuth(Auth{TenantID: "t", UserID: "u", SessionID: "s", ExpiresAt: &past}, time.Now())
	require.Error(t, err)
}

func TestRouterExecuteSuccess(t *testing.T) {
	router, _ := newTestRouter(t)
	task := &schema.Task{ID: "task-1", Prompt: "do it"}

	out, err := router.Execute(context.Background(), Decision{NextAgent: schema.AgentTester}, "proj-1", task, validAuth(), nil, nil)
	require.NoError(t, err)
	require.True(t, out.Success)
}

func TestRouterExecuteUnknownAgent(t *testing.T) {
	router, _ := newTestRouter(t)
	task := &schema.Task{ID: "task-1"}
	_, err := router.Execute(context.Background(), Decision{NextAgent: schema.AgentReviewer}, "proj-1", task, validAuth(), nil, nil)
	require.Error(t, err)
}

func TestTenantIsolation(t *testing.T) {
	out := schema.AgentOutput{Artifacts: []schema.Artifact{{Path: "/data/tenant-other/file.txt"}}}
	err := verifyTenantIsolation(out, "t1")
	require.Error(t, err)

	out2 := schema.AgentOutput{Artifacts: []schema.Artifact{{Path: "/data/tenant-t1/file.txt"}}}
	require.NoError(t, verifyTenantIsolation(out2, "t1"))
}
