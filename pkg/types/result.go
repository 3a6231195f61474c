package types

import (
	"errors"
	"time"
)

var (
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrInvalidScore = errors.New("score must be a finite non-negative number")
	ErrMissingEntry = errors.New("result entry is required")
)

// SearchResult is one ranked hit returned to callers
type SearchResult struct {
	Rank int // Position in the full ordered result set (1-based)

	Score         float64 // Composite relevance score (0 for non-relevance sorts without a query)
	TextRelevance float64 // Normalized text match score in [0, 1]
	Snippet       string  // Highlighted fragment of the matching text

	Entry *Entry
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < 0 || sr.Score != sr.Score {
		return ErrInvalidScore
	}

	if sr.Entry == nil {
		return ErrMissingEntry
	}

	return nil
}

// FacetValue is one value of a facet dimension with the number of matching entries
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SearchQueryLog is one append-only analytics record per executed search
type SearchQueryLog struct {
	ID              int64
	Query           string
	Filters         string // JSON of the filter set actually applied
	Mode            string
	ResultCount     int
	ExecutionTimeMs int64
	UserID          string
	IPHash          string // one-way hash, never the raw address
	UserAgent       string
	SearchedAt      time.Time
}
