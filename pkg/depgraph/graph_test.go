package depgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddTaskDuplicateConflict(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-a", nil))
	err := g.AddTask("task-a", nil)
	require.Error(t, err)
}

func TestAddTaskSelfEdgeRejected(t *testing.T) {
	g := New()
	err := g.AddTask("task-a", []string{"task-a"})
	require.Error(t, err)
}

func TestValidateDanglingReference(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-a", []string{"task-b"}))
	err := g.Validate()
	require.Error(t, err)
}

func TestCycleRejection(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-a", []string{"task-b"}))
	require.NoError(t, g.AddTask("task-b", []string{"task-c"}))
	require.NoError(t, g.AddTask("task-c", []string{"task-a"}))

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	require.ElementsMatch(t, []string{"task-a", "task-b", "task-c"}, cycles[0])

	_, err := g.TopologicalOrder()
	require.Error(t, err)
}

func TestTopologicalOrderDeterministic(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-c", []string{"task-a"}))
	require.NoError(t, g.AddTask("task-b", []string{"task-a"}))
	require.NoError(t, g.AddTask("task-a", nil))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"task-a", "task-b", "task-c"}, order)

	for _, id := range order {
		for _, dep := range g.Prerequisites(id) {
			require.Less(t, indexOf(order, dep), indexOf(order, id))
		}
	}
}

func TestParallelFanOut(t *testing.T) {
	g := New()
	for _, id := range []string{"task-1", "task-2", "task-3", "task-4", "task-5"} {
		require.NoError(t, g.AddTask(id, nil))
	}

	groups, err := g.ParallelGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, []string{"task-1", "task-2", "task-3", "task-4", "task-5"}, groups[0])

	path, err := g.CriticalPath()
	require.NoError(t, err)
	require.Len(t, path, 1)
}

func TestParallelGroupsConcatenationMatchesTopoOrder(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-a", nil))
	require.NoError(t, g.AddTask("task-b", []string{"task-a"}))
	require.NoError(t, g.AddTask("task-c", []string{"task-a"}))
	require.NoError(t, g.AddTask("task-d", []string{"task-b", "task-c"}))

	groups, err := g.ParallelGroups()
	require.NoError(t, err)
	require.Equal(t, [][]string{{"task-a"}, {"task-b", "task-c"}, {"task-d"}}, groups)

	path, err := g.CriticalPath()
	require.NoError(t, err)
	require.Equal(t, []string{"task-a", "task-b", "task-d"}, path)
}

func TestReadyTasks(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-a", nil))
	require.NoError(t, g.AddTask("task-b", []string{"task-a"}))

	ready := g.ReadyTasks(map[string]bool{})
	require.Equal(t, []string{"task-a"}, ready)

	ready = g.ReadyTasks(map[string]bool{"task-a": true})
	require.Equal(t, []string{"task-b"}, ready)
}

func TestRunWaves(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask("task-a", nil))
	require.NoError(t, g.AddTask("task-b", []string{"task-a"}))

	var executed []string
	err := g.RunWaves(context.Background(), func(_ context.Context, id string) error {
		executed = append(executed, id)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"task-a", "task-b"}, executed)
}
