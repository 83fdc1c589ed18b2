package cache

import (
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

type snapshot struct {
	reports   map[string]*models.ContentReport
	updatedAt time.Time
}

// Cache holds the latest report per keyword display. Readers always see one
// complete snapshot; writers publish a new map instead of mutating the current
// one.
type Cache struct {
	current atomic.Pointer[snapshot]
	// writeMu serializes copy-on-write updates so Merge never drops a
	// concurrent Replace.
	writeMu sync.Mutex
	now     func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{now: time.Now}
	c.current.Store(&snapshot{reports: map[string]*models.ContentReport{}})
	return c
}

// Get returns the cached report for a keyword display.
func (c *Cache) Get(keyword string) (*models.ContentReport, bool) {
	r, ok := c.current.Load().reports[keyword]
	return r, ok
}

// Snapshot returns the current report map. Callers must treat it as read-only.
func (c *Cache) Snapshot() map[string]*models.ContentReport {
	return c.current.Load().reports
}

// Replace swaps in a copy of reports as the whole cache content.
func (c *Cache) Replace(reports map[string]*models.ContentReport) {
	next := maps.Clone(reports)
	if next == nil {
		next = map[string]*models.ContentReport{}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.current.Store(&snapshot{reports: next, updatedAt: c.now()})
}

// Merge publishes a new snapshot with one report added or replaced.
func (c *Cache) Merge(report *models.ContentReport) {
	if report == nil {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := maps.Clone(c.current.Load().reports)
	next[report.Keyword] = report
	c.current.Store(&snapshot{reports: next, updatedAt: c.now()})
}

// Keywords lists the cached keyword displays in sorted order.
func (c *Cache) Keywords() []string {
	reports := c.Snapshot()
	out := make([]string, 0, len(reports))
	for k := range reports {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len is the number of cached keywords.
func (c *Cache) Len() int {
	return len(c.Snapshot())
}

// TotalContents sums the served (deduplicated) items across all reports.
func (c *Cache) TotalContents() int {
	total := 0
	for _, r := range c.Snapshot() {
		total += len(r.Contents)
	}
	return total
}

// UpdatedAt is when the current snapshot was published; zero before the first
// write.
func (c *Cache) UpdatedAt() time.Time {
	return c.current.Load().updatedAt
}
