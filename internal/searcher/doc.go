// Package searcher plans and executes full-text searches over the search index.
//
// A search request is validated, its free text compiled into an FTS5 match
// expression according to its mode, and its filters into store criteria.
// Results sorted by relevance are ranked with the composite scorer; other
// sorts are ordered and paginated by the store directly.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, searcher.Options{
//	    Config:   cfg,
//	    Recorder: analyticsService,
//	    Logger:   log,
//	})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:   "caching strategies",
//	    Filters: searcher.Filters{Categories: []string{"post"}},
//	    PerPage: 10,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.3f)\n", r.Rank, r.Entry.Title, r.Score)
//	}
//
// # Search Modes
//
// Natural (default): any query term may match; bm25 ranks documents with more
// and rarer terms higher.
//
// Boolean: operands may be marked required (+term), excluded (-term), quoted
// as an exact phrase ("two words") or used as a prefix (cach*). When any
// operand is required, unmarked operands are ignored.
//
//	+cache -redis "write through"
//
// Query expansion: every term also matches its English stem as a prefix and
// the synonyms configured under search.synonyms.
//
// # Relevance
//
// Raw bm25 scores are normalized against the best candidate in the scanned set,
// so text relevance lies in [0, 1]. At most search.max_scan candidates are
// ranked per query; Total is always the exact match count.
//
// # Facets and Suggestions
//
// Facets counts each dimension with every filter except its own applied.
// Suggest returns titles and keywords containing a fragment, prefix matches first.
//
// # Extension Hooks
//
// BeforeScore hooks may adjust a candidate's signal components or weights.
// AfterSearch hooks may inspect or amend the response. Both are registered
// through Options.Hooks; there is no global registry.
//
// # Caching
//
// With UseCache set, responses are kept in an LRU for search.cache_ttl_sec.
// InvalidateCache is called by the indexer after every index mutation.
package searcher
