// Package scheduler keeps the report cache fresh: a cron job re-collects the
// tracked keywords and on-demand refreshes run in the background.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/DeafMist/kpop-radar/backend/internal/cache"
	"github.com/DeafMist/kpop-radar/backend/internal/events"
	"github.com/DeafMist/kpop-radar/backend/internal/keywords"
	"github.com/DeafMist/kpop-radar/backend/internal/metrics"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Collector is the part of the collection pipeline the scheduler drives.
type Collector interface {
	Collect(ctx context.Context, in keywords.Input) *models.ContentReport
	CollectMany(ctx context.Context, inputs []keywords.Input) map[string]*models.ContentReport
}

// Config wires a Refresher.
type Config struct {
	Collector Collector
	Cache     *cache.Cache
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Interval  time.Duration
	Keywords  []keywords.Input
}

// Refresher owns the tracked keyword set and every write to the cache.
type Refresher struct {
	collector Collector
	cache     *cache.Cache
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	interval  time.Duration

	mu       sync.Mutex
	keywords []keywords.Input
	ctx      context.Context
	// gen numbers refresh jobs in start order; published is the newest job
	// whose reports reached the cache.
	gen       uint64
	published uint64

	cron *cron.Cron
	jobs sync.WaitGroup
}

// New validates cfg and builds a stopped Refresher.
func New(cfg Config) (*Refresher, error) {
	if cfg.Collector == nil {
		return nil, fmt.Errorf("scheduler: collector is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("scheduler: cache is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Refresher{
		collector: cfg.Collector,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		interval:  cfg.Interval,
		keywords:  slices.Clone(cfg.Keywords),
		ctx:       context.Background(),
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}, nil
}

// Start collects the tracked keywords once in the background and schedules a
// collection every interval. Jobs run under ctx.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	schedule := "@every " + r.interval.String()
	if _, err := r.cron.AddFunc(schedule, func() {
		inputs, gen := r.claim()
		r.run(TriggerSchedule, inputs, gen)
	}); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", schedule, err)
	}

	inputs, gen := r.claim()
	r.spawn(TriggerStartup, inputs, gen)
	r.cron.Start()
	r.log.Info("scheduler started",
		slog.Duration("interval", r.interval),
		slog.Int("keywords", len(r.Keywords())),
	)
	return nil
}

// Stop halts the cron schedule and waits for running collections.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.jobs.Wait()
	r.log.Info("scheduler stopped")
}

// RefreshAsync starts a background collection and returns its job id. A
// non-empty inputs list replaces the tracked keywords first; an empty one
// refreshes the current set.
func (r *Refresher) RefreshAsync(inputs []keywords.Input) (string, []keywords.Input) {
	if len(inputs) > 0 {
		r.SetKeywords(inputs)
	}
	tracked, gen := r.claim()
	id := r.spawn(TriggerManual, tracked, gen)
	return id, tracked
}

// Fetch collects a single keyword now and merges the report into the cache.
// When ctx ends before the collection finishes the report is returned but not
// cached, since the adapters may have given up early.
func (r *Refresher) Fetch(ctx context.Context, in keywords.Input) *models.ContentReport {
	report := r.collector.Collect(ctx, in)
	if err := ctx.Err(); err != nil {
		r.log.Warn("live fetch interrupted, not caching",
			slog.String("keyword", report.Keyword),
			slog.Any("err", err),
		)
		return report
	}
	r.cache.Merge(report)
	r.publisher.Publish(ctx, report)
	return report
}

// SetKeywords replaces the tracked keyword set.
func (r *Refresher) SetKeywords(inputs []keywords.Input) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keywords = slices.Clone(inputs)
}

// Keywords returns a copy of the tracked keyword set.
func (r *Refresher) Keywords() []keywords.Input {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.keywords)
}

// Interval is the time between scheduled collections.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// claim returns the tracked keywords together with a new job generation.
func (r *Refresher) claim() ([]keywords.Input, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	return slices.Clone(r.keywords), r.gen
}

func (r *Refresher) spawn(trigger string, inputs []keywords.Input, gen uint64) string {
	id := uuid.NewString()
	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		r.log.Info("refresh job started", slog.String("job_id", id), slog.String("trigger", trigger))
		r.run(trigger, inputs, gen)
	}()
	return id
}

func (r *Refresher) run(trigger string, inputs []keywords.Input, gen uint64) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	reports := r.collector.CollectMany(ctx, inputs)

	r.mu.Lock()
	stale := gen < r.published
	if !stale {
		r.cache.Replace(reports)
		r.published = gen
	}
	r.mu.Unlock()

	if stale {
		r.log.Info("refresh superseded by a newer job, discarded",
			slog.String("trigger", trigger),
			slog.Int("keywords", len(reports)),
		)
		return
	}

	for _, report := range reports {
		r.publisher.Publish(ctx, report)
	}
	r.metrics.RefreshDone(trigger, len(reports))
	r.log.Info("refresh completed",
		slog.String("trigger", trigger),
		slog.Int("keywords", len(reports)),
		slog.Int("contents", r.cache.TotalContents()),
		slog.Duration("took", time.Since(started)),
	)
}
