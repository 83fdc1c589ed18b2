package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/kpop-radar/backend/internal/dedupe"
	"github.com/DeafMist/kpop-radar/backend/internal/keywords"
	"github.com/DeafMist/kpop-radar/backend/internal/metrics"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/source"
)

const (
	defaultLimit       = 50
	defaultConcurrency = 4
)

// Pipeline fans a keyword out to every source adapter and merges the results
// into a report. It holds no per-run state, so concurrent Collect calls are
// safe.
type Pipeline struct {
	adapters    []source.Adapter
	normalizer  *keywords.Normalizer
	limits      map[models.Source]int
	concurrency int
	now         func() time.Time
	log         *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimit caps how many results are requested from src per query.
func WithLimit(src models.Source, n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.limits[src] = n
		}
	}
}

// WithConcurrency bounds how many keywords CollectMany collects at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pipeline. Video adapters are always queried before news
// adapters; adapters of the same source keep their given order.
func New(adapters []source.Adapter, normalizer *keywords.Normalizer, opts ...Option) *Pipeline {
	ordered := append([]source.Adapter(nil), adapters...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Source()) < rank(ordered[j].Source())
	})
	if normalizer == nil {
		normalizer = keywords.Default()
	}

	p := &Pipeline{
		adapters:    ordered,
		normalizer:  normalizer,
		limits:      make(map[models.Source]int),
		concurrency: defaultConcurrency,
		now:         time.Now,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func rank(src models.Source) int {
	if src == models.SourceVideo {
		return 0
	}
	return 1
}

// Normalize resolves keyword input with the pipeline's alias table.
func (p *Pipeline) Normalize(in keywords.Input) models.Keyword {
	return p.normalizer.Normalize(in)
}

// Collect runs one collection for a keyword: query every adapter with the
// English form and, when it differs, the Korean form; drop duplicates; stamp
// the keyword; order newest first.
func (p *Pipeline) Collect(ctx context.Context, in keywords.Input) *models.ContentReport {
	started := p.now()
	kw := p.normalizer.Normalize(in)

	// Fresh fingerprint set per run so nothing leaks between keywords.
	seen := dedupe.New()

	counts := make(map[models.Source]int)
	var all []models.ContentItem
	for _, a := range p.adapters {
		src := a.Source()
		limit := p.limit(src)

		var got []models.ContentItem
		if kw.EN != "" {
			got = append(got, a.Search(ctx, kw.EN, limit)...)
		}
		if kw.KO != "" && kw.KO != kw.EN {
			got = append(got, a.Search(ctx, kw.KO, limit)...)
		}
		counts[src] += len(got)
		all = append(all, got...)
	}

	unique := seen.Filter(all)
	display := kw.Display()
	for i := range unique {
		unique[i].KeywordEN = kw.EN
		unique[i].KeywordKO = kw.KO
		unique[i].KeywordDisplay = display
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].PublishedAt.After(unique[j].PublishedAt)
	})

	total := 0
	for _, n := range counts {
		total += n
	}

	p.metrics.AddDuplicates(len(all) - len(unique))
	p.metrics.ObserveCollection(p.now().Sub(started))
	p.log.Info("keyword collected",
		slog.String("keyword", display),
		slog.Int("fetched", total),
		slog.Int("unique", len(unique)),
	)

	return &models.ContentReport{
		Keyword:        display,
		KeywordEN:      kw.EN,
		KeywordKO:      kw.KO,
		TotalCount:     total,
		UniqueCount:    len(unique),
		CountsBySource: counts,
		Contents:       unique,
		CollectedAt:    p.now(),
	}
}

// CollectMany collects every keyword concurrently and keys the reports by
// keyword display. When two inputs share a display the later input wins.
// A keyword whose collection panics is logged and left out; its siblings are
// unaffected.
func (p *Pipeline) CollectMany(ctx context.Context, inputs []keywords.Input) map[string]*models.ContentReport {
	reports := make([]*models.ContentReport, len(inputs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			report, err := p.safeCollect(ctx, in)
			if err != nil {
				p.log.Error("keyword collection failed",
					slog.String("keyword", in.String()),
					slog.Any("err", err),
				)
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*models.ContentReport, len(inputs))
	for _, r := range reports {
		if r != nil {
			out[r.Keyword] = r
		}
	}
	return out
}

func (p *Pipeline) safeCollect(ctx context.Context, in keywords.Input) (report *models.ContentReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collect %q: panic: %v", in.String(), r)
		}
	}()
	return p.Collect(ctx, in), nil
}

func (p *Pipeline) limit(src models.Source) int {
	if n, ok := p.limits[src]; ok {
		return n
	}
	return defaultLimit
}
