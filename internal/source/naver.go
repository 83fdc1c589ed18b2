package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/processing"
)

// NaverMaxResults is the "display" cap of the news search API.
const NaverMaxResults = 100

const (
	naverEndpoint = "https://openapi.naver.com"
	naverPath     = "/v1/search/news.json"
	// pubDate layout, e.g. "Mon, 01 Jan 2024 12:00:00 +0900".
	naverDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"
)

// Naver searches recent news through the Naver news search API.
type Naver struct {
	base
	clientID     string
	clientSecret string
	endpoint     string
	http         *http.Client
}

type naverResponse struct {
	Items []naverItem `json:"items"`
}

type naverItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// NewNaver builds the news adapter. Missing credentials yield an adapter that
// always returns nothing.
func NewNaver(clientID, clientSecret string, opts Options) *Naver {
	n := &Naver{
		base:         newBase(models.SourceNews, opts),
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		http:         &http.Client{},
	}
	if n.endpoint == "" {
		n.endpoint = naverEndpoint
	}
	if !n.Configured() {
		n.log.Warn("naver credentials missing, news search disabled")
	}
	return n
}

func (n *Naver) Source() models.Source { return models.SourceNews }

// Configured reports whether both client id and secret are set.
func (n *Naver) Configured() bool { return n.clientID != "" && n.clientSecret != "" }

func (n *Naver) Search(ctx context.Context, query string, limit int) []models.ContentItem {
	if !n.Configured() {
		n.log.Debug("skip search, no credentials", slog.String("query", query))
		return nil
	}

	ctx, cancel, ok := n.begin(ctx)
	if !ok {
		return nil
	}
	defer cancel()

	payload, err := n.fetch(ctx, query, capLimit(limit, NaverMaxResults))
	if err != nil {
		reason := "transport"
		var se statusError
		var de decodeError
		switch {
		case errors.As(err, &se):
			reason = "status"
		case errors.As(err, &de):
			reason = "decode"
		}
		n.fail(reason, err)
		return nil
	}

	now := n.now()
	items := make([]models.ContentItem, 0, len(payload.Items))
	for _, raw := range payload.Items {
		item, keep := n.finish(now, models.ContentItem{
			Title:       processing.StripMarkup(raw.Title),
			Description: processing.StripMarkup(raw.Description),
			URL:         raw.Link,
			Channel:     outlet(raw.OriginalLink),
			PublishedAt: parseNaverDate(raw.PubDate, now),
		})
		if keep {
			items = append(items, item)
		}
	}

	n.metrics.AddFetched(string(models.SourceNews), len(items))
	n.log.Debug("search done",
		slog.String("query", query),
		slog.Int("received", len(payload.Items)),
		slog.Int("kept", len(items)),
	)
	return items
}

type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	return fmt.Sprintf("naver search failed: %d %s", e.code, e.body)
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return fmt.Sprintf("decode naver response: %v", e.err) }

func (n *Naver) fetch(ctx context.Context, query string, display int) (*naverResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("sort", "date")
	params.Set("start", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+naverPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", n.clientID)
	req.Header.Set("X-Naver-Client-Secret", n.clientSecret)

	res, err := n.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, statusError{code: res.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var parsed naverResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, decodeError{err: err}
	}
	return &parsed, nil
}

func parseNaverDate(raw string, now time.Time) time.Time {
	ts, err := time.Parse(naverDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return now.Add(-staleAge)
	}
	return ts
}

// outlet reduces the original article link to its host, which is the closest
// thing to a publisher name the API returns.
func outlet(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
