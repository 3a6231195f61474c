package searcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

func TestSuggest_ReturnsDeduplicatedMatches(t *testing.T) {
	env := setupSearcher(t, nil)

	got, err := env.searcher.Suggest(context.Background(), "ca", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 5)

	seen := make(map[string]bool)
	for _, s := range got {
		lower := strings.ToLower(s)
		assert.Contains(t, lower, "ca")
		assert.False(t, seen[lower], "duplicate suggestion %q", s)
		seen[lower] = true
	}

	// "cache" appears as a keyword on two entries, so it ranks first
	assert.Equal(t, "cache", got[0])
	// Draft titles are never suggested
	assert.NotContains(t, got, "Careers")
}

func TestSuggest_Ordering(t *testing.T) {
	env := setupSearcher(t, nil)

	got, err := env.searcher.Suggest(context.Background(), "cach", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "Caching", "Cache invalidation", "Caching strategies for CMS"}, got)

	// Substring matches follow prefix matches
	got, err = env.searcher.Suggest(context.Background(), "ing", 10)
	require.NoError(t, err)
	for _, s := range got {
		assert.Contains(t, strings.ToLower(s), "ing")
	}
}

func TestSuggest_Limits(t *testing.T) {
	env := setupSearcher(t, nil)
	ctx := context.Background()

	got, err := env.searcher.Suggest(ctx, "ca", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Limits above the configured maximum are clamped
	got, err = env.searcher.Suggest(ctx, "ca", 1000)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), config.Default().Suggestions.MaxLimit)
}

func TestSuggest_RejectsShortInput(t *testing.T) {
	env := setupSearcher(t, nil)

	_, err := env.searcher.Suggest(context.Background(), "c", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = env.searcher.Suggest(context.Background(), "  c  ", 5)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSuggest_Disabled(t *testing.T) {
	off := false
	env := setupSearcher(t, func(c *config.Config) { c.Search.SuggestionsEnabled = &off })

	_, err := env.searcher.Suggest(context.Background(), "cache", 5)
	assert.ErrorIs(t, err, types.ErrFeatureDisabled)
}

func TestSuggest_FoldsNonASCIICase(t *testing.T) {
	env := setupSearcher(t, nil)
	ctx := context.Background()
	_, err := env.store.UpsertEntry(ctx, &types.Entry{SourceType: types.SourceContent, SourceID: "8", Title: "Élan vital",
		Keywords: "ÜBERSICHT", Category: "post", Status: types.StatusPublished, PublishedAt: day(2026, 2, 1)})
	require.NoError(t, err)

	for _, partial := range []string{"él", "ÉL", "Él"} {
		got, err := env.searcher.Suggest(ctx, partial, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"Élan vital"}, got, partial)
	}

	got, err := env.searcher.Suggest(ctx, "über", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ÜBERSICHT"}, got)

	// Unaccented input matches the index but not the title text
	got, err = env.searcher.Suggest(ctx, "elan", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
