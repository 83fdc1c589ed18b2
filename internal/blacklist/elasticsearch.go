package blacklist

import (
	"context"
	"fmt"
	"sync"

	"github.com/DeafMist/kpop-radar/backend/internal/elasticsearch"
)

const (
	kindID  = "id"
	kindURL = "url"
)

// entryIndex is the part of the Elasticsearch client the store needs.
type entryIndex interface {
	PutEntry(ctx context.Context, e elasticsearch.Entry) error
	DeleteEntry(ctx context.Context, e elasticsearch.Entry) error
	ListEntries(ctx context.Context) ([]elasticsearch.Entry, error)
}

// ESStore keeps the blacklist in an Elasticsearch index and mirrors it in
// memory for lookups.
type ESStore struct {
	index entryIndex

	mu  sync.RWMutex
	set set
}

// NewESStore loads the current entries from index.
func NewESStore(ctx context.Context, index entryIndex) (*ESStore, error) {
	s := &ESStore{index: index, set: newSet()}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory mirror with the indexed entries.
func (s *ESStore) Reload(ctx context.Context) error {
	entries, err := s.index.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}

	next := newSet()
	for _, e := range entries {
		switch e.Kind {
		case kindID:
			next.add(e.Value, "")
		case kindURL:
			next.add("", e.Value)
		}
	}

	s.mu.Lock()
	s.set = next
	s.mu.Unlock()
	return nil
}

func (s *ESStore) IsBlocked(id, url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.blocked(id, url)
}

func (s *ESStore) Add(ctx context.Context, id, url string) (List, error) {
	for _, e := range entries(id, url) {
		if err := s.index.PutEntry(ctx, e); err != nil {
			return s.snapshot(), fmt.Errorf("block %s: %w", e.Kind, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.add(id, url)
	return s.set.list(), nil
}

func (s *ESStore) Remove(ctx context.Context, id, url string) (List, error) {
	for _, e := range entries(id, url) {
		if err := s.index.DeleteEntry(ctx, e); err != nil {
			return s.snapshot(), fmt.Errorf("unblock %s: %w", e.Kind, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.remove(id, url)
	return s.set.list(), nil
}

func (s *ESStore) List(context.Context) (List, error) {
	return s.snapshot(), nil
}

func (s *ESStore) snapshot() List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.list()
}

func entries(id, url string) []elasticsearch.Entry {
	var out []elasticsearch.Entry
	if id != "" {
		out = append(out, elasticsearch.Entry{Kind: kindID, Value: id})
	}
	if url != "" {
		out = append(out, elasticsearch.Entry{Kind: kindURL, Value: url})
	}
	return out
}
