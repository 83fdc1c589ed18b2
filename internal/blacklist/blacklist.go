// Package blacklist stores content ids and URLs hidden from API responses.
package blacklist

import (
	"context"
	"slices"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

// List is the serialized blacklist: sorted, without duplicates.
type List struct {
	BlockedIDs  []string `json:"blocked_ids"`
	BlockedURLs []string `json:"blocked_urls"`
}

// Store is a durable blacklist. IsBlocked is served from memory and never
// blocks on I/O.
type Store interface {
	IsBlocked(id, url string) bool
	Add(ctx context.Context, id, url string) (List, error)
	Remove(ctx context.Context, id, url string) (List, error)
	List(ctx context.Context) (List, error)
}

// set is the in-memory form shared by every store.
type set struct {
	ids  map[string]struct{}
	urls map[string]struct{}
}

func newSet() set {
	return set{ids: map[string]struct{}{}, urls: map[string]struct{}{}}
}

func (s set) blocked(id, url string) bool {
	if id != "" {
		if _, ok := s.ids[id]; ok {
			return true
		}
	}
	if url != "" {
		if _, ok := s.urls[url]; ok {
			return true
		}
	}
	return false
}

func (s set) add(id, url string) {
	if id != "" {
		s.ids[id] = struct{}{}
	}
	if url != "" {
		s.urls[url] = struct{}{}
	}
}

func (s set) remove(id, url string) {
	if id != "" {
		delete(s.ids, id)
	}
	if url != "" {
		delete(s.urls, url)
	}
}

func (s set) list() List {
	return List{BlockedIDs: sortedKeys(s.ids), BlockedURLs: sortedKeys(s.urls)}
}

func (s set) clone() set {
	out := newSet()
	for k := range s.ids {
		out.ids[k] = struct{}{}
	}
	for k := range s.urls {
		out.urls[k] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// FilterReport returns report without the items store blocks. Counts describe
// the fetch and are left as they are. The input report is never modified.
func FilterReport(store Store, report *models.ContentReport) *models.ContentReport {
	if store == nil || report == nil {
		return report
	}

	kept := make([]models.ContentItem, 0, len(report.Contents))
	for _, item := range report.Contents {
		if store.IsBlocked(item.ID, item.URL) {
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == len(report.Contents) {
		return report
	}

	out := *report
	out.Contents = kept
	return &out
}

// FilterReports applies FilterReport to every report of a snapshot.
func FilterReports(store Store, reports map[string]*models.ContentReport) map[string]*models.ContentReport {
	out := make(map[string]*models.ContentReport, len(reports))
	for k, r := range reports {
		out[k] = FilterReport(store, r)
	}
	return out
}
