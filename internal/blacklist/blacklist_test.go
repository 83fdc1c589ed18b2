package blacklist_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/kpop-radar/backend/internal/blacklist"
	"github.com/DeafMist/kpop-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "blacklist.json")

	store := blacklist.NewFileStore(path, nil)
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list.BlockedIDs)
	require.Empty(t, list.BlockedURLs)

	_, err = store.Add(ctx, "b", "https://example.com/2")
	require.NoError(t, err)
	list, err = store.Add(ctx, "a", "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, list.BlockedIDs)
	require.Equal(t, []string{"https://example.com/2"}, list.BlockedURLs)

	list, err = store.Add(ctx, "a", "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, list.BlockedIDs)

	require.True(t, store.IsBlocked("a", ""))
	require.True(t, store.IsBlocked("", "https://example.com/2"))
	require.False(t, store.IsBlocked("c", "https://example.com/3"))
	require.False(t, store.IsBlocked("", ""))

	reopened := blacklist.NewFileStore(path, nil)
	list, err = reopened.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, list.BlockedIDs)
	require.Equal(t, []string{"https://example.com/2"}, list.BlockedURLs)

	list, err = reopened.Remove(ctx, "b", "https://example.com/2")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, list.BlockedIDs)
	require.Empty(t, list.BlockedURLs)

	list, err = reopened.Remove(ctx, "missing", "")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, list.BlockedIDs)
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := blacklist.NewFileStore(path, nil)
	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list.BlockedIDs)

	_, err = store.Add(context.Background(), "x", "")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"blocked_ids"`)
	require.Contains(t, string(data), `"x"`)
}

type fakeIndex struct {
	entries map[elasticsearch.Entry]struct{}
	failPut bool
}

func newFakeIndex(seed ...elasticsearch.Entry) *fakeIndex {
	f := &fakeIndex{entries: map[elasticsearch.Entry]struct{}{}}
	for _, e := range seed {
		f.entries[e] = struct{}{}
	}
	return f
}

func (f *fakeIndex) PutEntry(_ context.Context, e elasticsearch.Entry) error {
	if f.failPut {
		return errors.New("index unavailable")
	}
	f.entries[e] = struct{}{}
	return nil
}

func (f *fakeIndex) DeleteEntry(_ context.Context, e elasticsearch.Entry) error {
	delete(f.entries, e)
	return nil
}

func (f *fakeIndex) ListEntries(context.Context) ([]elasticsearch.Entry, error) {
	out := make([]elasticsearch.Entry, 0, len(f.entries))
	for e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func TestESStore(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex(
		elasticsearch.Entry{Kind: "id", Value: "seed"},
		elasticsearch.Entry{Kind: "url", Value: "https://example.com/seed"},
	)

	store, err := blacklist.NewESStore(ctx, idx)
	require.NoError(t, err)
	require.True(t, store.IsBlocked("seed", ""))
	require.True(t, store.IsBlocked("", "https://example.com/seed"))

	list, err := store.Add(ctx, "new", "https://example.com/new")
	require.NoError(t, err)
	require.Equal(t, []string{"new", "seed"}, list.BlockedIDs)
	require.Equal(t, []string{"https://example.com/new", "https://example.com/seed"}, list.BlockedURLs)
	require.Len(t, idx.entries, 4)

	list, err = store.Remove(ctx, "seed", "")
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, list.BlockedIDs)
	require.False(t, store.IsBlocked("seed", ""))

	idx.failPut = true
	_, err = store.Add(ctx, "rejected", "")
	require.Error(t, err)
	require.False(t, store.IsBlocked("rejected", ""))
}

func TestFilterReport(t *testing.T) {
	ctx := context.Background()
	store := blacklist.NewFileStore(filepath.Join(t.TempDir(), "bl.json"), nil)
	_, err := store.Add(ctx, "blocked-id", "https://example.com/blocked")
	require.NoError(t, err)

	report := &models.ContentReport{
		Keyword:    "BTS",
		TotalCount: 3,
		Contents: []models.ContentItem{
			{ID: "keep", URL: "https://example.com/keep"},
			{ID: "blocked-id", URL: "https://example.com/other"},
			{ID: "other", URL: "https://example.com/blocked"},
		},
	}

	filtered := blacklist.FilterReport(store, report)
	require.Len(t, filtered.Contents, 1)
	require.Equal(t, "keep", filtered.Contents[0].ID)
	require.Equal(t, 3, filtered.TotalCount)
	require.Len(t, report.Contents, 3)

	require.Nil(t, blacklist.FilterReport(store, nil))

	all := blacklist.FilterReports(store, map[string]*models.ContentReport{"BTS": report})
	require.Len(t, all["BTS"].Contents, 1)
}
