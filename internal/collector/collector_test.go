package collector_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/kpop-radar/backend/internal/collector"
	"github.com/DeafMist/kpop-radar/backend/internal/keywords"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/source"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	query string
	limit int
}

type stubAdapter struct {
	src     models.Source
	results map[string][]models.ContentItem

	mu    sync.Mutex
	calls []call
}

func (s *stubAdapter) Source() models.Source { return s.src }

func (s *stubAdapter) Search(_ context.Context, query string, limit int) []models.ContentItem {
	s.mu.Lock()
	s.calls = append(s.calls, call{query: query, limit: limit})
	s.mu.Unlock()

	if query == "boom" {
		panic("upstream exploded")
	}
	return append([]models.ContentItem(nil), s.results[query]...)
}

func (s *stubAdapter) queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.query)
	}
	return out
}

func item(src models.Source, title string, age time.Duration) models.ContentItem {
	return models.ContentItem{
		Title:       title,
		URL:         "https://example.com/" + title,
		Source:      src,
		PublishedAt: now.Add(-age),
	}
}

func titles(items []models.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestCollectBTSEndToEnd(t *testing.T) {
	v1 := item(models.SourceVideo, "v1", time.Hour)
	v2 := item(models.SourceVideo, "v2", 3*time.Hour)
	n1 := item(models.SourceNews, "n1", 2*time.Hour)

	video := &stubAdapter{src: models.SourceVideo, results: map[string][]models.ContentItem{
		"BTS":   {v1},
		"방탄소년단": {v1, v2},
	}}
	news := &stubAdapter{src: models.SourceNews, results: map[string][]models.ContentItem{
		"BTS":   {n1},
		"방탄소년단": {n1},
	}}

	p := collector.New([]source.Adapter{news, video}, keywords.Default(), collector.WithClock(func() time.Time { return now }))
	report := p.Collect(context.Background(), keywords.Text("BTS"))

	require.Equal(t, []string{"BTS", "방탄소년단"}, video.queries())
	require.Equal(t, []string{"BTS", "방탄소년단"}, news.queries())

	require.Equal(t, "BTS", report.Keyword)
	require.Equal(t, "BTS", report.KeywordEN)
	require.Equal(t, "방탄소년단", report.KeywordKO)
	require.Equal(t, []string{"v1", "n1", "v2"}, titles(report.Contents))
	require.Equal(t, 3, report.UniqueCount)
	require.Equal(t, 5, report.TotalCount)
	require.Equal(t, map[models.Source]int{models.SourceVideo: 3, models.SourceNews: 2}, report.CountsBySource)
	require.Equal(t, now, report.CollectedAt)

	seen := map[string]bool{}
	for _, c := range report.Contents {
		require.Equal(t, "BTS", c.KeywordEN)
		require.Equal(t, "방탄소년단", c.KeywordKO)
		require.Equal(t, "BTS", c.KeywordDisplay)
		require.LessOrEqual(t, now.Sub(c.PublishedAt), 24*time.Hour)
		key := c.Title + "|" + c.URL
		require.False(t, seen[key])
		seen[key] = true
	}
}

func TestCollectSortsNewestFirst(t *testing.T) {
	video := &stubAdapter{src: models.SourceVideo, results: map[string][]models.ContentItem{
		"Coldplay": {
			item(models.SourceVideo, "t-1h", time.Hour),
			item(models.SourceVideo, "t-3h", 3*time.Hour),
			item(models.SourceVideo, "t-2h", 2*time.Hour),
		},
	}}

	p := collector.New([]source.Adapter{video}, keywords.Default())
	report := p.Collect(context.Background(), keywords.Text("Coldplay"))
	require.Equal(t, []string{"t-1h", "t-2h", "t-3h"}, titles(report.Contents))
}

func TestCollectSortIsStable(t *testing.T) {
	video := &stubAdapter{src: models.SourceVideo, results: map[string][]models.ContentItem{
		"Coldplay": {item(models.SourceVideo, "va", time.Hour), item(models.SourceVideo, "vb", time.Hour)},
	}}
	news := &stubAdapter{src: models.SourceNews, results: map[string][]models.ContentItem{
		"Coldplay": {item(models.SourceNews, "na", time.Hour), item(models.SourceNews, "old", 5*time.Hour), item(models.SourceNews, "nb", time.Hour)},
	}}

	p := collector.New([]source.Adapter{news, video}, keywords.Default())
	report := p.Collect(context.Background(), keywords.Text("Coldplay"))
	require.Equal(t, []string{"va", "vb", "na", "nb", "old"}, titles(report.Contents))
}

func TestCollectSkipsMirroredKorean(t *testing.T) {
	video := &stubAdapter{src: models.SourceVideo}
	news := &stubAdapter{src: models.SourceNews}

	p := collector.New([]source.Adapter{video, news}, keywords.Default())
	report := p.Collect(context.Background(), keywords.Text("Coldplay"))

	require.Equal(t, []string{"Coldplay"}, video.queries())
	require.Equal(t, []string{"Coldplay"}, news.queries())
	require.Equal(t, "Coldplay", report.Keyword)
	require.Empty(t, report.Contents)
	require.Zero(t, report.TotalCount)
}

func TestCollectPairInput(t *testing.T) {
	video := &stubAdapter{src: models.SourceVideo}

	p := collector.New([]source.Adapter{video}, keywords.Default())
	report := p.Collect(context.Background(), keywords.Pair(models.Keyword{EN: "Custom", KO: "커스텀"}))

	require.Equal(t, []string{"Custom", "커스텀"}, video.queries())
	require.Equal(t, "Custom", report.Keyword)
}

func TestCollectLimits(t *testing.T) {
	video := &stubAdapter{src: models.SourceVideo}
	news := &stubAdapter{src: models.SourceNews}

	p := collector.New([]source.Adapter{video, news}, keywords.Default(),
		collector.WithLimit(models.SourceVideo, 10),
		collector.WithLimit(models.SourceNews, 30),
	)
	p.Collect(context.Background(), keywords.Text("Coldplay"))

	require.Equal(t, 10, video.calls[0].limit)
	require.Equal(t, 30, news.calls[0].limit)
}

func TestCollectManyIsolatesRuns(t *testing.T) {
	shared := item(models.SourceNews, "shared", time.Hour)
	news := &stubAdapter{src: models.SourceNews, results: map[string][]models.ContentItem{
		"Coldplay": {shared},
		"Muse":     {shared},
	}}

	p := collector.New([]source.Adapter{news}, keywords.Default(), collector.WithConcurrency(2))
	reports := p.CollectMany(context.Background(), keywords.Texts("Coldplay", "Muse"))

	require.Len(t, reports, 2)
	require.Len(t, reports["Coldplay"].Contents, 1)
	require.Len(t, reports["Muse"].Contents, 1)
	require.Equal(t, "Muse", reports["Muse"].Contents[0].KeywordDisplay)
}

// Two inputs normalizing to the same display share a cache key; the later one
// in input order replaces the earlier one.
func TestCollectManyDisplayCollisionLastWins(t *testing.T) {
	news := &stubAdapter{src: models.SourceNews}

	p := collector.New([]source.Adapter{news}, keywords.Default())
	reports := p.CollectMany(context.Background(), []keywords.Input{
		keywords.Text("BTS"),
		keywords.Pair(models.Keyword{EN: "BTS", KO: "비티에스"}),
	})

	require.Len(t, reports, 1)
	require.Equal(t, "비티에스", reports["BTS"].KeywordKO)
}

func TestCollectManyPanicDoesNotAbortSiblings(t *testing.T) {
	video := &stubAdapter{src: models.SourceVideo, results: map[string][]models.ContentItem{
		"Coldplay": {item(models.SourceVideo, "ok", time.Hour)},
	}}

	p := collector.New([]source.Adapter{video}, keywords.Default())
	reports := p.CollectMany(context.Background(), keywords.Texts("boom", "Coldplay"))

	require.Len(t, reports, 1)
	require.Equal(t, []string{"ok"}, titles(reports["Coldplay"].Contents))
}

func TestCollectManyEmpty(t *testing.T) {
	p := collector.New(nil, nil)
	require.Empty(t, p.CollectMany(context.Background(), nil))
}
