package schedule

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group starts a set of loops together and stops them together.
type Group struct {
	loops []*Loop
}

// NewGroup collects loops; nil entries are ignored.
func NewGroup(loops ...*Loop) *Group {
	g := &Group{}
	for _, l := range loops {
		if l != nil {
			g.loops = append(g.loops, l)
		}
	}
	return g
}

// Loops returns the grouped loops.
func (g *Group) Loops() []*Loop {
	return append([]*Loop(nil), g.loops...)
}

// Run starts every loop and blocks until ctx ends, then stops them all.
func (g *Group) Run(ctx context.Context) error {
	for i, l := range g.loops {
		if err := l.Start(ctx); err != nil {
			g.stop(g.loops[:i])
			return fmt.Errorf("start loop: %w", err)
		}
	}
	<-ctx.Done()
	g.stop(g.loops)
	return nil
}

func (g *Group) stop(loops []*Loop) {
	var eg errgroup.Group
	for _, l := range loops {
		eg.Go(func() error {
			l.Stop()
			return nil
		})
	}
	_ = eg.Wait()
}
