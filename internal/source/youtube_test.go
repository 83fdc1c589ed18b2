package source_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/source"
)

func video(id, title string, published string) map[string]any {
	return map[string]any{
		"kind": "youtube#searchResult",
		"id":   map[string]any{"kind": "youtube#video", "videoId": id},
		"snippet": map[string]any{
			"publishedAt":  published,
			"title":        title,
			"description":  "desc &amp; more",
			"channelTitle": "HYBE LABELS",
			"thumbnails": map[string]any{
				"medium": map[string]any{"url": "https://i.ytimg.com/vi/" + id + "/mqdefault.jpg"},
			},
		},
	}
}

func TestYouTubeSearch(t *testing.T) {
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind": "youtube#searchListResponse",
			"items": []any{
				video("a1", "BTS &#39;Butter&#39; live", fixedNow.Add(-2*time.Hour).Format(time.RFC3339)),
				video("a2", "boundary", fixedNow.Add(-24*time.Hour).Format(time.RFC3339)),
				video("a3", "too old", fixedNow.Add(-25*time.Hour).Format(time.RFC3339)),
				video("a4", "bad timestamp", "not-a-time"),
			},
		})
	}))
	t.Cleanup(srv.Close)

	y, err := source.NewYouTube(context.Background(), "test-key", source.Options{
		Endpoint: srv.URL + "/",
		Now:      clock,
	})
	require.NoError(t, err)
	require.True(t, y.Configured())
	require.Equal(t, models.SourceVideo, y.Source())

	items := y.Search(context.Background(), "BTS", 80)

	require.True(t, strings.HasSuffix(path, "/youtube/v3/search"), path)
	require.Equal(t, "test-key", got.Get("key"))
	require.Equal(t, "BTS", got.Get("q"))
	require.Equal(t, "50", got.Get("maxResults"))
	require.Equal(t, "date", got.Get("order"))
	require.Equal(t, "video", got.Get("type"))
	require.Equal(t, "KR", got.Get("regionCode"))
	require.Equal(t, fixedNow.Add(-24*time.Hour).Format(time.RFC3339), got.Get("publishedAfter"))

	require.Len(t, items, 2)
	first := items[0]
	require.Equal(t, "BTS 'Butter' live", first.Title)
	require.Equal(t, "desc & more", first.Description)
	require.Equal(t, "https://www.youtube.com/watch?v=a1", first.URL)
	require.Equal(t, "https://i.ytimg.com/vi/a1/mqdefault.jpg", first.Thumbnail)
	require.Equal(t, "HYBE LABELS", first.Channel)
	require.Equal(t, models.SourceVideo, first.Source)
	require.Equal(t, "2시간 전", first.PublishedAtDisplay)
	require.Equal(t, "boundary", items[1].Title)
}

func TestYouTubeMissingKey(t *testing.T) {
	y, err := source.NewYouTube(context.Background(), "", source.Options{Now: clock})
	require.NoError(t, err)
	require.False(t, y.Configured())
	require.Empty(t, y.Search(context.Background(), "BTS", 10))
}

func TestYouTubeSoftDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	t.Cleanup(srv.Close)

	y, err := source.NewYouTube(context.Background(), "test-key", source.Options{
		Endpoint: srv.URL + "/",
		Now:      clock,
	})
	require.NoError(t, err)
	require.Empty(t, y.Search(context.Background(), "BTS", 10))
}
