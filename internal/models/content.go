package models

import "time"

// Source identifies the upstream a content item came from.
type Source string

const (
	SourceVideo Source = "video"
	SourceNews  Source = "news"
)

// Keyword is the canonical bilingual form of a tracked search term.
type Keyword struct {
	EN string `json:"en"`
	KO string `json:"ko"`
}

// Display is the key a keyword's report is cached and served under.
func (k Keyword) Display() string {
	if k.EN != "" {
		return k.EN
	}
	return k.KO
}

// ContentItem is the unified record every source adapter produces.
type ContentItem struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	URL                string    `json:"url"`
	Thumbnail          string    `json:"thumbnail"`
	Source             Source    `json:"source"`
	Channel            string    `json:"channel"`
	PublishedAt        time.Time `json:"published_at"`
	PublishedAtDisplay string    `json:"published_at_formatted"`
	KeywordEN          string    `json:"keyword_en,omitempty"`
	KeywordKO          string    `json:"keyword_ko,omitempty"`
	KeywordDisplay     string    `json:"keyword_display,omitempty"`
}

// ContentReport aggregates one collection run for a single keyword.
// Reports are never patched; a newer run supersedes them wholesale.
type ContentReport struct {
	Keyword        string         `json:"keyword"`
	KeywordEN      string         `json:"keyword_en"`
	KeywordKO      string         `json:"keyword_ko"`
	// TotalCount and CountsBySource count raw fetches before deduplication.
	TotalCount     int            `json:"total_count"`
	UniqueCount    int            `json:"unique_count"`
	CountsBySource map[Source]int `json:"counts_by_source"`
	Contents       []ContentItem  `json:"contents"`
	CollectedAt    time.Time      `json:"collected_at"`
}
