package dedupe

import (
	"sync"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/processing"
)

// Deduplicator keeps the fingerprints observed during one collection run.
// Reset it (or use a fresh one) before every run so fingerprints never leak
// between keywords.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty deduplicator.
func New() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Reset forgets every fingerprint.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen = make(map[string]struct{})
}

// Seen records the (title, url) pair and reports whether it was already
// observed in this run.
func (d *Deduplicator) Seen(title, url string) bool {
	key := processing.Fingerprint(title, url)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Filter drops items whose fingerprint was already seen, keeping the first
// occurrence and the input order.
func (d *Deduplicator) Filter(items []models.ContentItem) []models.ContentItem {
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if d.Seen(item.Title, item.URL) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Len returns how many distinct fingerprints the run has seen.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
