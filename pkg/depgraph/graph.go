// Package depgraph implements the dependency graph scheduler: cycle
// detection, topological ordering, parallel-wave grouping, and
// critical-path analysis over a task precedence graph.
package depgraph

import (
	"sort"

	"github.com/orchestr8/engine/internal/orcherr"
)

// Graph holds forward adjacency (task -> its prerequisites) and reverse
// adjacency (task -> its dependents).
type Graph struct {
	forward map[string][]string // id -> prerequisite ids
	reverse map[string][]string // id -> dependent ids
	order   []string            // insertion order, for stable iteration
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
}

// AddTask registers a task with its prerequisite ids. It fails when id
// is empty, already present, or self-referential; unknown prerequisite
// ids are accepted here and only surfaced by Validate, because a
// breakdown may be loaded in any order.
func (g *Graph) AddTask(id string, prerequisites []string) error {
	if id == "" {
		return orcherr.ValidationFailure("depgraph", "AddTask", "task id cannot be empty", nil)
	}
	if _, exists := g.forward[id]; exists {
		return orcherr.Conflict("depgraph", "AddTask", "task id already exists: "+id, nil)
	}
	for _, dep := range prerequisites {
		if dep == id {
			return orcherr.ValidationFailure("depgraph", "AddTask", "self-dependency not allowed: "+id, nil)
		}
	}

	prereqs := append([]string(nil), prerequisites...)
	g.forward[id] = prereqs
	if _, ok := g.reverse[id]; !ok {
		g.reverse[id] = nil
	}
	for _, dep := range prereqs {
		g.reverse[dep] = append(g.reverse[dep], id)
	}
	g.order = append(g.order, id)
	return nil
}

// Exists reports whether id has been added to the graph.
func (g *Graph) Exists(id string) bool {
	_, ok := g.forward[id]
	return ok
}

// Prerequisites returns the direct prerequisites of id.
func (g *Graph) Prerequisites(id string) []string {
	return append([]string(nil), g.forward[id]...)
}

// Validate succeeds iff every dependency edge references a task that
// exists in the graph and the graph is acyclic.
func (g *Graph) Validate() error {
	for id, prereqs := range g.forward {
		for _, dep := range prereqs {
			if !g.Exists(dep) {
				return orcherr.ValidationFailure("depgraph", "Validate",
					"task "+id+" depends on unknown task "+dep, nil)
			}
		}
	}
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return orcherr.HasCycles("depgraph", "Validate", "graph contains cycles")
	}
	return nil
}

// DetectCycles runs a DFS with a recursion stack and returns every
// simple cycle found, not just the first, so callers can report every
// blocker at once.
func (g *Graph) DetectCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.forward))
	var stack []string
	var cycles [][]string

	ids := g.sortedIDs()

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		for _, dep := range sortedCopy(g.forward[id]) {
			if !g.Exists(dep) {
				continue // dangling refs are a Validate concern, not a cycle
			}
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// found a cycle: dep is already on the stack
				idx := indexOf(stack, dep)
				if idx >= 0 {
					cycle := append([]string(nil), stack[idx:]...)
					cycles = append(cycles, normalizeCycle(cycle))
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}

	return dedupeCycles(cycles)
}

// TopologicalOrder applies Kahn's algorithm over in-degree computed as
// "number of prerequisites". Ties in the ready set are broken
// lexicographically, which is a contract, not an implementation detail.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, orcherr.HasCycles("depgraph", "TopologicalOrder", "graph contains cycles")
	}

	inDegree := make(map[string]int, len(g.forward))
	for id, prereqs := range g.forward {
		inDegree[id] = len(prereqs)
	}

	var ready []string
	for _, id := range g.sortedIDs() {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range sortedCopy(g.reverse[next]) {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	return order, nil
}

// ParallelGroups assigns each task a level (root tasks are level 0;
// every other task is 1 + max(level of prerequisites)) and returns
// levels ascending, ids lexicographic within a level.
func (g *Graph) ParallelGroups() ([][]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	maxLevel := 0
	for _, id := range order {
		l := 0
		for _, dep := range g.forward[id] {
			if level[dep]+1 > l {
				l = level[dep] + 1
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}

	groups := make([][]string, maxLevel+1)
	for _, id := range order {
		groups[level[id]] = append(groups[level[id]], id)
	}
	for i := range groups {
		sort.Strings(groups[i])
	}

	return groups, nil
}

// CriticalPath returns the longest path in the DAG by edge count,
// reconstructed via predecessor pointers, ties broken lexicographically.
func (g *Graph) CriticalPath() ([]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	dist := make(map[string]int, len(order))
	pred := make(map[string]string, len(order))
	hasPred := make(map[string]bool, len(order))

	for _, id := range order {
		best := -1
		var bestDep string
		for _, dep := range sortedCopy(g.forward[id]) {
			candidate := dist[dep] + 1
			if candidate > best || (candidate == best && dep < bestDep) {
				best = candidate
				bestDep = dep
			}
		}
		if best >= 0 {
			dist[id] = best
			pred[id] = bestDep
			hasPred[id] = true
		}
	}

	var bestEnd string
	bestDist := -1
	for _, id := range order {
		if dist[id] > bestDist || (dist[id] == bestDist && (bestEnd == "" || id < bestEnd)) {
			bestDist = dist[id]
			bestEnd = id
		}
	}

	if bestEnd == "" {
		return nil, nil
	}

	var path []string
	cur := bestEnd
	for {
		path = append([]string{cur}, path...)
		if !hasPred[cur] {
			break
		}
		cur = pred[cur]
	}
	return path, nil
}

// ReadyTasks returns every id whose prerequisites are all present in
// completed.
func (g *Graph) ReadyTasks(completed map[string]bool) []string {
	var ready []string
	for _, id := range g.sortedIDs() {
		if completed[id] {
			continue
		}
		allDone := true
		for _, dep := range g.forward[id] {
			if !completed[dep] {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.forward))
	for id := range g.forward {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// normalizeCycle rotates a cycle so it starts at its lexicographically
// smallest element, giving a canonical form for deduplication.
func normalizeCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	minIdx := 0
	for i, v := range cycle {
		if v < cycle[minIdx] {
			minIdx = i
		}
	}
	return append(append([]string(nil), cycle[minIdx:]...), cycle[:minIdx]...)
}

func dedupeCycles(cycles [][]string) [][]string {
	seen := make(map[string]bool)
	var out [][]string
	for _, c := range cycles {
		key := ""
		for _, id := range c {
			key += id + ","
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return joinKey(out[i]) < joinKey(out[j])
	})
	return out
}

func joinKey(s []string) string {
	out := ""
	for _, x := range s {
		out += x + ","
	}
	return out
}
