package agentregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/pkg/schema"
)

type stubAgent struct {
	meta Metadata
}

func (s *stubAgent) Metadata() Metadata { return s.meta }
func (s *stubAgent) Execute(_ context.Context, req AgentRequest) (schema.AgentOutput, error) {
	return schema.AgentOutput{Agent: s.meta.ID, Success: true}, nil
}

func TestRegistrySealRejectsLateRegistration(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(schema.AgentTester, Metadata{ID: schema.AgentTester}, func() (Agent, error) {
		return &stubAgent{meta: Metadata{ID: schema.AgentTester}}, nil
	}))
	r.Seal()

	err := r.Register(schema.AgentReviewer, Metadata{ID: schema.AgentReviewer}, func() (Agent, error) {
		return &stubAgent{meta: Metadata{ID: schema.AgentReviewer}}, nil
	})
	require.Error(t, err)
}

func TestRegistryLazyInstantiation(t *testing.T) {
	r := New()
	calls := 0
	require.NoError(t, r.Register(schema.AgentTester, Metadata{ID: schema.AgentTester}, func() (Agent, error) {
		calls++
		return &stubAgent{meta: Metadata{ID: schema.AgentTester}}, nil
	}))

	require.Equal(t, 0, calls)
	_, err := r.GetAgent(schema.AgentTester)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	_, err = r.GetAgent(schema.AgentTester)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second GetAgent must not re-instantiate")
}

func TestRegistryNotFound(t *testing.T) {
	r := New()
	_, err := r.GetAgent(schema.AgentTester)
	require.Error(t, err)
}

func TestFindByCapability(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(schema.AgentTester, Metadata{
		ID:           schema.AgentTester,
		Capabilities: []Capability{{Name: "run_tests"}},
	}, func() (Agent, error) { return &stubAgent{}, nil }))

	ids := r.FindByCapability("run_tests")
	require.Equal(t, []schema.AgentID{schema.AgentTester}, ids)
}
