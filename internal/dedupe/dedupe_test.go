package dedupe_test

import (
	"testing"

	"github.com/DeafMist/kpop-radar/backend/internal/dedupe"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/stretchr/testify/require"
)

func item(title, url string) models.ContentItem {
	return models.ContentItem{Title: title, URL: url}
}

func TestFilterDropsIdenticalPair(t *testing.T) {
	d := dedupe.New()
	x := item("Dynamite", "https://example.com/1")

	got := d.Filter([]models.ContentItem{x, x})
	require.Len(t, got, 1)
	require.Equal(t, x, got[0])
}

func TestFilterKeepsDistinctInOrder(t *testing.T) {
	d := dedupe.New()
	a := item("a", "https://example.com/a")
	b := item("b", "https://example.com/b")

	got := d.Filter([]models.ContentItem{a, b})
	require.Equal(t, []models.ContentItem{a, b}, got)
}

func TestFilterSameTitleDifferentURL(t *testing.T) {
	d := dedupe.New()
	got := d.Filter([]models.ContentItem{
		item("same", "https://example.com/a"),
		item("same", "https://example.com/b"),
	})
	require.Len(t, got, 2)
}

func TestFilterAcrossCalls(t *testing.T) {
	d := dedupe.New()
	x := item("x", "https://example.com/x")

	require.Len(t, d.Filter([]models.ContentItem{x}), 1)
	require.Empty(t, d.Filter([]models.ContentItem{x}))
}

func TestResetForgetsFingerprints(t *testing.T) {
	d := dedupe.New()
	require.False(t, d.Seen("alpha", "https://example.com"))
	require.True(t, d.Seen("alpha", "https://example.com"))
	require.Equal(t, 1, d.Len())

	d.Reset()
	require.Equal(t, 0, d.Len())
	require.False(t, d.Seen("alpha", "https://example.com"))
}
