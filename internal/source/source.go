// Package source wraps the upstream search APIs and turns their results into
// recent, unified content items.
package source

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/DeafMist/kpop-radar/backend/internal/metrics"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/processing"
)

const (
	// Window is how far back an item may be published and still be kept.
	Window = 24 * time.Hour
	// staleAge is assigned to items whose timestamp cannot be parsed so the
	// window filter drops them.
	staleAge = 25 * time.Hour

	defaultTimeout = 10 * time.Second
)

// Adapter searches one upstream. Search never fails: missing credentials,
// transport errors and malformed payloads all produce an empty result.
type Adapter interface {
	Source() models.Source
	Search(ctx context.Context, query string, limit int) []models.ContentItem
}

// Options carries the knobs shared by every adapter.
type Options struct {
	Endpoint string
	Timeout  time.Duration
	// RPS limits upstream calls per second; zero disables limiting.
	RPS     float64
	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type base struct {
	source  models.Source
	timeout time.Duration
	limiter *rate.Limiter
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics
}

func newBase(src models.Source, opts Options) base {
	b := base{
		source:  src,
		timeout: opts.Timeout,
		now:     opts.Now,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if b.timeout <= 0 || b.timeout > defaultTimeout {
		b.timeout = defaultTimeout
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.log == nil {
		b.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b.log = b.log.With("source", string(src))
	if opts.RPS > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return b
}

// begin bounds the call with the adapter timeout and waits for the limiter.
func (b base) begin(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			b.fail("rate_limit", err)
			cancel()
			return nil, nil, false
		}
	}
	return ctx, cancel, true
}

func (b base) fail(reason string, err error) {
	b.log.Warn("upstream search degraded", slog.String("reason", reason), slog.Any("err", err))
	b.metrics.UpstreamFailed(string(b.source), reason)
}

// finish applies the recency window and fills the derived fields.
func (b base) finish(now time.Time, item models.ContentItem) (models.ContentItem, bool) {
	if !processing.WithinWindow(item.PublishedAt, now, Window) {
		return item, false
	}
	item.Source = b.source
	item.ID = processing.Fingerprint(item.Title, item.URL)
	item.PublishedAtDisplay = processing.FormatRelative(item.PublishedAt, now)
	return item, true
}

func capLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
