package source

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/processing"
)

// YouTubeMaxResults is the page size cap of search.list.
const YouTubeMaxResults = 50

const watchURL = "https://www.youtube.com/watch?v="

// YouTube searches recent videos through the YouTube Data API v3.
type YouTube struct {
	base
	svc *youtube.Service
}

// NewYouTube builds the video adapter. An empty apiKey yields an adapter that
// always returns nothing.
func NewYouTube(ctx context.Context, apiKey string, opts Options) (*YouTube, error) {
	y := &YouTube{base: newBase(models.SourceVideo, opts)}
	if apiKey == "" {
		y.log.Warn("youtube api key missing, video search disabled")
		return y, nil
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	y.svc = svc
	return y, nil
}

func (y *YouTube) Source() models.Source { return models.SourceVideo }

// Configured reports whether the adapter has credentials.
func (y *YouTube) Configured() bool { return y.svc != nil }

func (y *YouTube) Search(ctx context.Context, query string, limit int) []models.ContentItem {
	if y.svc == nil {
		y.log.Debug("skip search, no credentials", slog.String("query", query))
		return nil
	}

	ctx, cancel, ok := y.begin(ctx)
	if !ok {
		return nil
	}
	defer cancel()

	now := y.now()
	resp, err := y.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		Order("date").
		MaxResults(int64(capLimit(limit, YouTubeMaxResults))).
		PublishedAfter(now.Add(-Window).UTC().Format(time.RFC3339)).
		RegionCode("KR").
		Context(ctx).
		Do()
	if err != nil {
		y.fail("transport", err)
		return nil
	}

	items := make([]models.ContentItem, 0, len(resp.Items))
	for _, r := range resp.Items {
		if r == nil || r.Snippet == nil {
			continue
		}
		videoID := ""
		if r.Id != nil {
			videoID = r.Id.VideoId
		}
		thumb := ""
		if r.Snippet.Thumbnails != nil && r.Snippet.Thumbnails.Medium != nil {
			thumb = r.Snippet.Thumbnails.Medium.Url
		}

		item, keep := y.finish(now, models.ContentItem{
			Title:       processing.StripMarkup(r.Snippet.Title),
			Description: processing.StripMarkup(r.Snippet.Description),
			URL:         watchURL + videoID,
			Thumbnail:   thumb,
			Channel:     r.Snippet.ChannelTitle,
			PublishedAt: parseRFC3339(r.Snippet.PublishedAt, now),
		})
		if keep {
			items = append(items, item)
		}
	}

	y.metrics.AddFetched(string(models.SourceVideo), len(items))
	y.log.Debug("search done",
		slog.String("query", query),
		slog.Int("received", len(resp.Items)),
		slog.Int("kept", len(items)),
	)
	return items
}

func parseRFC3339(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, f := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}
	return now.Add(-staleAge)
}
