package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	applog "rewards/internal/log"
	"rewards/internal/sources"
	"rewards/internal/storage"
)

// ReplicaImporter stores a full copy of the report collections.
type ReplicaImporter interface {
	Import(ctx context.Context, d storage.Dataset) error
}

// ReplicaSync mirrors an upstream source into the local sqlite replica.
type ReplicaSync struct {
	upstream sources.Source
	replica  ReplicaImporter
	logger   *applog.Logger
}

func NewReplicaSync(upstream sources.Source, replica ReplicaImporter, logger *applog.Logger) *ReplicaSync {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReplicaSync{
		upstream: upstream,
		replica:  replica,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// SyncOnce fetches every collection and imports them. Nothing is written when
// any fetch fails.
func (r *ReplicaSync) SyncOnce(ctx context.Context) error {
	var d storage.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Nominations, err = r.upstream.ListNominations(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Rewards, err = r.upstream.ListRewards(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Categories, err = r.upstream.ListRewardCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Employees, err = r.upstream.ListEmployees(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch upstream: %w", err)
	}
	if err := r.replica.Import(ctx, d); err != nil {
		return fmt.Errorf("import replica: %w", err)
	}
	return nil
}

// Run syncs immediately and then every interval until ctx is done.
func (r *ReplicaSync) Run(ctx context.Context, interval time.Duration) {
	if err := r.SyncOnce(ctx); err != nil {
		r.logger.LogError(ctx, "Replica sync failed", err, applog.OpFetch, nil)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SyncOnce(ctx); err != nil {
				r.logger.LogError(ctx, "Replica sync failed", err, applog.OpFetch, nil)
			}
		}
	}
}
