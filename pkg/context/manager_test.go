package context

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	t         Type
	items     []Item
	available bool
}

func (f *fakeSource) Type() Type { return f.t }
func (f *fakeSource) Fetch(_ context.Context, _ SourceParams) ([]Item, error) {
	return f.items, nil
}
func (f *fakeSource) IsAvailable() bool { return f.available }

func TestCurateContextRespectsBudget(t *testing.T) {
	m := NewManager(DefaultBudget(), nil)

	big := strings.Repeat("x", 40000) // ~10000 tokens
	m.RegisterSource(&fakeSource{
		t:         TypeCurrentTask,
		available: true,
		items: []Item{
			{Type: TypeCurrentTask, Content: big},
			{Type: TypeCurrentTask, Content: "small"},
		},
	})

	result, err := m.CurateContext(context.Background(), AgentMeta{
		Requirements: []Requirement{{Type: TypeCurrentTask, Required: true}},
	}, Auth{TenantID: "t1", SessionID: "s1"}, "proj-1", "query")
	require.NoError(t, err)
	require.LessOrEqual(t, result.TotalTokens, DefaultBudget().TotalTokens)
	require.True(t, result.Truncated[TypeCurrentTask])
}

func TestCurateContextMissingRequired(t *testing.T) {
	m := NewManager(DefaultBudget(), nil)

	result, err := m.CurateContext(context.Background(), AgentMeta{
		Requirements: []Requirement{{Type: TypeProjectConfig, Required: true}},
	}, Auth{TenantID: "t1"}, "proj-1", "")
	require.NoError(t, err)
	require.Contains(t, result.MissingRequired, TypeProjectConfig)
}

func TestEstimateTokens(t *testing.T) {
	item := Item{Content: "abcd"} // serialized as "\"abcd\"" = 6 bytes -> ceil(6/4)=2
	require.Equal(t, 2, EstimateTokens(item))
}
