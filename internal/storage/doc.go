// Package storage provides SQLite-based persistence for the search index and the search query log.
//
// # Database Schema
//
// Tables:
//   - search_index: one denormalized document per (source_type, source_id)
//   - search_index_fts: FTS5 external-content index over title, body, excerpt and keywords
//   - search_index_metadata: metadata terms used by filters and facets
//   - search_query_logs: append-only search analytics
//
// The FTS table is maintained by triggers; callers only write search_index.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("data/search.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	changed, err := store.UpsertEntry(ctx, &types.Entry{
//	    SourceType: types.SourceContent,
//	    SourceID:   "42",
//	    Title:      "Hello World",
//	    Status:     types.StatusPublished,
//	})
//
// Upserts compare a SHA-256 content hash and leave unchanged rows untouched,
// so syncing the same entry twice is a no-op.
//
// # Searching
//
// Criteria compiles to a single WHERE clause shared by counting, candidate
// scans and facet counting:
//
//	now := time.Now()
//	criteria := &storage.Criteria{
//	    Match:      `"hello" OR "world"`,
//	    VisibleAt:  &now,
//	    Categories: []string{"post"},
//	}
//	total, _ := store.CountCandidates(ctx, criteria)
//	page, _ := store.SearchCandidates(ctx, criteria, storage.Page{Limit: 20})
//
// Raw scores are -bm25() with title, body, excerpt and keywords weighted 10, 1, 3 and 5.
//
// # Build Tags
//
// Pure Go Build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler and the fts5 tag
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo,fts5"
package storage
