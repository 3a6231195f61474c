// Package types provides shared type definitions for the CMS search subsystem.
//
// # Index Entries
//
// Entry is a denormalized snapshot of one CMS entity (content item, taxonomy
// term, media item) keyed by its (SourceType, SourceID) pair:
//
//	entry := &types.Entry{
//	    SourceType:     types.SourceContent,
//	    SourceID:       "42",
//	    Title:          "Getting started",
//	    Category:       "page",
//	    Status:         types.StatusPublished,
//	    RelevanceBoost: 1.0,
//	    Metadata: types.Metadata{
//	        "color": types.StringValue("blue"),
//	        "tags":  types.ListValue("go", "search"),
//	    },
//	}
//
// Entries are validated at write time. RelevanceBoost must be strictly
// positive; Normalize replaces an unset boost with DefaultRelevanceBoost.
//
// # Metadata
//
// Metadata values form a closed variant (string, number, bool, list of
// strings). Value.Terms returns canonical string forms so that filters and
// facets over metadata keys compare like with like.
//
// # Errors
//
// Every component reports failures through the shared taxonomy:
//
//	errors.Is(err, types.ErrValidation)      // caller input was malformed
//	errors.Is(err, types.ErrFeatureDisabled) // switched off by configuration
//	errors.Is(err, types.ErrIndexingFailure) // a single upsert/remove failed
//	errors.Is(err, types.ErrQueryExecution)  // store failure or timeout
//
// QueryExecutionError.Error is sanitized for callers; Detail carries the cause.
package types
