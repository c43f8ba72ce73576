// Package services orchestrates report refreshes over a data source.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rewards/internal/analytics"
	"rewards/internal/cache"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/sources"
)

// ErrSuperseded is returned by a refresh that a newer one from the same
// client overtook.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// Publisher is notified after every snapshot that becomes the latest.
type Publisher interface {
	PublishReport(ctx context.Context, s core.Snapshot) error
}

// ReportService fetches the report collections and publishes snapshots.
// Each refresh is tagged with a generation. A new refresh cancels the one
// the same client has in flight; refreshes from other clients run on. Every
// completed snapshot is kept per date range, and only a snapshot newer than
// the published one replaces it as the latest.
type ReportService struct {
	source       sources.Source
	publisher    Publisher
	logger       *applog.Logger
	fetchTimeout time.Duration
	now          func() time.Time
	byRange      *cache.LRU[core.Snapshot]

	mu       sync.Mutex
	nextGen  uint64
	inflight map[string]run
	latest   *core.Snapshot
}

type run struct {
	gen    uint64
	cancel context.CancelCauseFunc
}

type Option func(*ReportService)

func WithPublisher(p Publisher) Option {
	return func(s *ReportService) { s.publisher = p }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ReportService) { s.logger = l }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *ReportService) { s.fetchTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *ReportService) { s.now = now }
}

// WithSnapshotCache sizes the per-range store that failed refreshes fall
// back to.
func WithSnapshotCache(size int, ttl time.Duration) Option {
	return func(s *ReportService) {
		if size > 0 && ttl > 0 {
			s.byRange = cache.NewLRU[core.Snapshot](size, ttl)
		}
	}
}

func NewReportService(source sources.Source, opts ...Option) *ReportService {
	s := &ReportService{
		source:       source,
		fetchTimeout: 60 * time.Second,
		now:          time.Now,
		inflight:     make(map[string]run),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.byRange == nil {
		s.byRange = cache.NewLRU[core.Snapshot](64, 24*time.Hour)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentReports)
	return s
}

// Refresh fetches every collection and aggregates them for r on behalf of
// client. A refresh the same client still has running is cancelled and
// returns ErrSuperseded. On failure the previous snapshots stay.
func (s *ReportService) Refresh(ctx context.Context, client string, r core.DateRange) (core.Snapshot, error) {
	gen, runCtx, done := s.begin(ctx, client)
	defer done()

	fields := applog.NewFields().
		WithClientIP(client).
		WithGeneration(gen).
		WithRange(r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	start := s.now()

	in, err := s.fetch(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) && superseded(runCtx) {
			s.logger.InfoContext(ctx, "Refresh cancelled by a newer request", fields.ToSlice()...)
			return core.Snapshot{}, ErrSuperseded
		}
		s.logger.LogError(ctx, "Report refresh failed", err, applog.OpRefresh, fields)
		return core.Snapshot{}, fmt.Errorf("refresh generation %d: %w", gen, err)
	}
	if superseded(runCtx) {
		s.logger.InfoContext(ctx, "Discarded stale refresh result", fields.ToSlice()...)
		return core.Snapshot{}, ErrSuperseded
	}

	snap := core.Snapshot{
		Generation:  gen,
		Range:       r,
		GeneratedAt: s.now(),
		Data:        analytics.Build(in, r),
	}
	promoted := s.publish(snap)

	s.logger.InfoContext(ctx, "Report refreshed", append(fields.ToSlice(),
		"nominations", len(in.Nominations),
		"in_range", snap.Data.Metrics.TotalNominations,
		"latest", promoted,
		applog.FieldDuration, s.now().Sub(start).Milliseconds())...)

	if promoted && s.publisher != nil {
		if err := s.publisher.PublishReport(context.WithoutCancel(ctx), snap); err != nil {
			s.logger.LogError(ctx, "Failed to publish report event", err, applog.OpPublish, applog.NewFields().WithGeneration(gen))
		}
	}
	return snap, nil
}

// Latest returns the newest published snapshot, whatever its range.
func (s *ReportService) Latest() (core.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return core.Snapshot{}, false
	}
	return *s.latest, true
}

// Previous returns the last completed snapshot covering exactly r.
func (s *ReportService) Previous(r core.DateRange) (core.Snapshot, bool) {
	return s.byRange.Get(rangeKey(r))
}

// Generation returns the tag of the most recently started refresh.
func (s *ReportService) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextGen
}

func (s *ReportService) begin(ctx context.Context, client string) (uint64, context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.inflight[client]; ok {
		prev.cancel(ErrSuperseded)
	}
	s.nextGen++
	gen := s.nextGen

	runCtx, cancelRun := context.WithCancelCause(ctx)
	timeoutCtx, cancelTimeout := context.WithTimeout(runCtx, s.fetchTimeout)
	s.inflight[client] = run{gen: gen, cancel: cancelRun}

	return gen, timeoutCtx, func() {
		cancelTimeout()
		cancelRun(nil)
		s.mu.Lock()
		if cur, ok := s.inflight[client]; ok && cur.gen == gen {
			delete(s.inflight, client)
		}
		s.mu.Unlock()
	}
}

func superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}

// publish records snap for its range and makes it the latest unless a newer
// generation is already published.
func (s *ReportService) publish(snap core.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rangeKey(snap.Range)
	if prev, ok := s.byRange.Get(key); !ok || prev.Generation <= snap.Generation {
		s.byRange.Set(key, snap)
	}
	if s.latest != nil && s.latest.Generation > snap.Generation {
		return false
	}
	s.latest = &snap
	return true
}

func rangeKey(r core.DateRange) string {
	return r.Start.Format(time.DateOnly) + "|" + r.End.Format(time.DateOnly)
}

func (s *ReportService) fetch(ctx context.Context) (analytics.Inputs, error) {
	var in analytics.Inputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.source.ListNominations(gctx)
		if err != nil {
			return fmt.Errorf("nominations: %w", err)
		}
		in.Nominations = v
		return nil
	})
	g.Go(func() error {
		v, err := s.source.ListRewards(gctx)
		if err != nil {
			return fmt.Errorf("rewards: %w", err)
		}
		in.Rewards = v
		return nil
	})
	g.Go(func() error {
		v, err := s.source.ListRewardCategories(gctx)
		if err != nil {
			return fmt.Errorf("reward categories: %w", err)
		}
		in.Categories = v
		return nil
	})
	g.Go(func() error {
		v, err := s.source.ListEmployees(gctx)
		if err != nil {
			return fmt.Errorf("employees: %w", err)
		}
		in.Employees = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return analytics.Inputs{}, err
	}
	return in, nil
}
