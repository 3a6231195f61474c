package storage

import (
	"context"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// Storage defines the interface for the search index store and the query log store
type Storage interface {
	EntryWriter

	// Index entry operations
	GetEntry(ctx context.Context, kind types.SourceKind, sourceID string) (*types.Entry, error)
	GetEntryByID(ctx context.Context, id int64) (*types.Entry, error)
	ListSourceIDs(ctx context.Context, kind types.SourceKind) ([]string, error)

	// Search operations
	CountCandidates(ctx context.Context, criteria *Criteria) (int, error)
	SearchCandidates(ctx context.Context, criteria *Criteria, page Page) ([]Candidate, error)
	FacetCounts(ctx context.Context, criteria *Criteria, dim Dimension, limit int) ([]types.FacetValue, error)
	SuggestionSources(ctx context.Context, fragment string, visibleAt *time.Time, limit int) ([]SuggestionSource, error)

	// Query log operations
	InsertQueryLog(ctx context.Context, entry *types.SearchQueryLog) error
	PopularQueries(ctx context.Context, from, to time.Time, limit int) ([]QueryStat, error)
	FailedQueries(ctx context.Context, from, to time.Time, limit int) ([]QueryStat, error)
	PerformanceStats(ctx context.Context, from, to time.Time) (*PerformanceStats, error)
	DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	DeleteQueryLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Status operations
	GetStatus(ctx context.Context, now time.Time) (*IndexStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// EntryWriter covers the mutating index operations shared by the store and its transactions
type EntryWriter interface {
	// UpsertEntry inserts or replaces the entry keyed by (SourceType, SourceID).
	// It reports whether the stored row changed.
	UpsertEntry(ctx context.Context, entry *types.Entry) (changed bool, err error)
	// DeleteEntry removes the entry if present. Removing a missing entry is not an error.
	DeleteEntry(ctx context.Context, kind types.SourceKind, sourceID string) (deleted bool, err error)
}

// Tx represents a database transaction used for batched index writes
type Tx interface {
	Commit() error
	Rollback() error
	EntryWriter
}

// Order selects the ordering applied by SearchCandidates
type Order int

const (
	// OrderRank orders by raw text relevance when a match expression is present,
	// and by publication date (newest first) otherwise
	OrderRank Order = iota
	OrderPublished
	OrderTitle
	OrderCategory
)

// Page bounds and orders a candidate scan. Entry id ascending is always the final tie-break.
type Page struct {
	Order  Order
	Desc   bool
	Limit  int // <= 0 means no limit
	Offset int
}

// Criteria is the conjunctive candidate restriction shared by search and facets.
// Empty slices and nil pointers are ignored rather than matching nothing.
type Criteria struct {
	Match       string     // FTS5 match expression; empty skips text matching
	VisibleAt   *time.Time // when set, only entries visible at this instant qualify
	SourceTypes []string
	Categories  []string
	Authors     []string
	Statuses    []string
	DateFrom    *time.Time // inclusive bound on published_at
	DateTo      *time.Time // inclusive bound on published_at
	Metadata    map[string][]string
}

// Dimension names a facet dimension
type Dimension struct {
	Name        string // category, status, author, source_type or the metadata key
	MetadataKey bool
}

var (
	DimCategory   = Dimension{Name: "category"}
	DimStatus     = Dimension{Name: "status"}
	DimAuthor     = Dimension{Name: "author"}
	DimSourceType = Dimension{Name: "source_type"}
)

// MetadataDimension returns the facet dimension for a custom metadata key
func MetadataDimension(key string) Dimension {
	return Dimension{Name: key, MetadataKey: true}
}

// Without returns a copy of the criteria with the filter on dim removed
func (c *Criteria) Without(dim Dimension) *Criteria {
	out := *c
	if dim.MetadataKey {
		out.Metadata = make(map[string][]string, len(c.Metadata))
		for k, v := range c.Metadata {
			if k != dim.Name {
				out.Metadata[k] = v
			}
		}
		return &out
	}
	switch dim.Name {
	case DimCategory.Name:
		out.Categories = nil
	case DimStatus.Name:
		out.Statuses = nil
	case DimAuthor.Name:
		out.Authors = nil
	case DimSourceType.Name:
		out.SourceTypes = nil
	}
	return &out
}

// Candidate is an entry that satisfied the criteria, with its raw text score
type Candidate struct {
	Entry    *types.Entry
	RawScore float64 // -bm25(); 0 when no match expression was applied
	Snippet  string
}

// SuggestionSource carries the indexed fields suggestions are drawn from
type SuggestionSource struct {
	Title    string
	Keywords string
}

// QueryStat aggregates the log rows of one (case-folded) query string
type QueryStat struct {
	Query          string
	Searches       int
	AvgResults     float64
	AvgExecutionMs float64
	LastSearchedAt time.Time
}

// PerformanceStats summarizes the query log over a time range
type PerformanceStats struct {
	TotalSearches  int
	UniqueQueries  int
	AvgResults     float64
	AvgExecutionMs float64
	Successful     int // searches with at least one result
}

// DailyCount is one UTC-day bucket of the query log
type DailyCount struct {
	Day            string // YYYY-MM-DD
	Searches       int
	Failed         int
	AvgExecutionMs float64
}

// IndexStatus contains statistics about the index store
type IndexStatus struct {
	IndexedCount  int
	VisibleCount  int
	ByType        map[string]int
	LastIndexedAt time.Time
	QueryLogCount int
	IndexSizeMB   float64
	SchemaVersion string
}
