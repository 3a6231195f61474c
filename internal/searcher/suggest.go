package searcher

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// suggestionScan bounds how many indexed entries are inspected per suggestion request
const suggestionScan = 500

type suggestion struct {
	text   string
	lower  string
	count  int
	prefix bool
}

// Suggest returns up to limit distinct titles or keywords containing partial, case-insensitively.
// Prefix matches come first, then more frequent, then shorter candidates.
func (s *Searcher) Suggest(ctx context.Context, partial string, limit int) ([]string, error) {
	if !enabled(s.cfg.Search.Enabled) || !enabled(s.cfg.Search.SuggestionsEnabled) {
		return nil, &types.FeatureDisabledError{Feature: "search suggestions"}
	}

	partial = strings.TrimSpace(partial)
	if n := utf8.RuneCountInString(partial); n < s.cfg.Suggestions.MinLength {
		return nil, types.NewValidationError("query", "suggestions need at least %d characters, got %d",
			s.cfg.Suggestions.MinLength, n)
	}
	partial = s.normalizeQuery(partial)

	if limit <= 0 {
		limit = s.cfg.Suggestions.DefaultLimit
	}
	if limit > s.cfg.Suggestions.MaxLimit {
		limit = s.cfg.Suggestions.MaxLimit
	}

	execCtx, cancel := context.WithTimeout(ctx, s.queryTimeout())
	defer cancel()

	now := s.now()
	sources, err := s.storage.SuggestionSources(execCtx, partial, &now, suggestionScan)
	if err != nil {
		return nil, s.executionError("suggest", partial, err)
	}

	needle := strings.ToLower(partial)
	byKey := make(map[string]*suggestion)
	var ordered []*suggestion
	add := func(text string) {
		text = strings.TrimSpace(text)
		lower := strings.ToLower(text)
		if text == "" || !strings.Contains(lower, needle) {
			return
		}
		if sg, ok := byKey[lower]; ok {
			sg.count++
			return
		}
		sg := &suggestion{text: text, lower: lower, count: 1, prefix: strings.HasPrefix(lower, needle)}
		byKey[lower] = sg
		ordered = append(ordered, sg)
	}

	for _, src := range sources {
		add(src.Title)
		for _, kw := range strings.Split(src.Keywords, ",") {
			add(kw)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		if a.count != b.count {
			return a.count > b.count
		}
		if len(a.lower) != len(b.lower) {
			return len(a.lower) < len(b.lower)
		}
		return a.lower < b.lower
	})

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	out := make([]string, len(ordered))
	for i, sg := range ordered {
		out[i] = sg.text
	}
	return out, nil
}
