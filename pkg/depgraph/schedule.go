package depgraph

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskFunc executes one task id; its error, if any, cancels the wave.
type TaskFunc func(ctx context.Context, id string) error

// RunWaves walks ParallelGroups level by level, running every task in a
// level concurrently via errgroup before moving to the next level. The
// first error in a wave cancels the remaining tasks in that wave and
// aborts the schedule.
func (g *Graph) RunWaves(ctx context.Context, fn TaskFunc) error {
	groups, err := g.ParallelGroups()
	if err != nil {
		return err
	}

	for _, level := range groups {
		eg, egCtx := errgroup.WithContext(ctx)
		for _, id := range level {
			id := id
			eg.Go(func() error {
				return fn(egCtx, id)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}
