package server

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Group runs several managers as one unit: all start together, and a
// failure or context cancellation stops every member.
type Group struct {
	managers []*Manager
	logger   *zap.Logger
}

// NewGroup builds a group from managers.
func NewGroup(logger *zap.Logger, managers ...*Manager) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group{
		managers: managers,
		logger:   logger.With(zap.String("component", "server_group")),
	}
}

// Run starts every manager and blocks until ctx is cancelled or one of
// them fails, then shuts all of them down.
func (g *Group) Run(ctx context.Context) error {
	for _, m := range g.managers {
		if err := m.Start(); err != nil {
			g.shutdownAll(context.Background())
			return err
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, m := range g.managers {
		m := m
		eg.Go(func() error {
			select {
			case err := <-m.Errors():
				return err
			case <-egCtx.Done():
				return nil
			}
		})
	}

	<-egCtx.Done()
	g.shutdownAll(context.Background())
	return eg.Wait()
}

func (g *Group) shutdownAll(ctx context.Context) {
	for _, m := range g.managers {
		if err := m.Shutdown(ctx); err != nil {
			g.logger.Error("member shutdown failed", zap.Error(err))
		}
	}
}
