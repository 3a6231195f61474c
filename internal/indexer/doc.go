// Package indexer keeps the search index in step with the CMS source entities.
//
// Single entities are synced with Upsert and Remove, or through HandleEvent,
// which maps content lifecycle notifications onto those two operations:
//
//	idx := indexer.New(store, registry, indexer.Options{OnChange: s.InvalidateCache})
//	idx.HandleEvent(ctx, indexer.Event{
//	    Type:       indexer.EventPublished,
//	    SourceType: types.SourceContent,
//	    SourceID:   "42",
//	    Record:     &indexer.Record{Title: "Hello"},
//	})
//
// Event handling is fire-and-forget: failures are logged and counted, and a stale
// entry is corrected by the next event or the next full reindex.
//
// # Full Reindex
//
// ReindexAll walks every source registered in the Registry. Each source streams
// its entities through a FetchFunc; entities are grouped into batches of
// BatchSize and each batch is written in one transaction, with at most Workers
// batches in flight. Once a source has been read completely, entries of that
// kind that the source no longer returned are pruned. A source whose fetch fails
// is never pruned.
//
// Upserts only rewrite rows whose content hash changed, so running ReindexAll
// twice in a row leaves the store unchanged. Only one reindex runs at a time;
// a concurrent call returns ErrReindexInProgress while live searches and single
// upserts keep going.
package indexer
