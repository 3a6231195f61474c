// Package chi exposes the search service as a JSON API on a chi router.
//
// Public routes serve search, facets, suggestions and status. Routes that mutate
// the index or expose query analytics require a bearer API key when keys are
// configured, and so does searching unpublished entries: without a valid key
// include_unpublished is ignored.
//
// Errors map onto status codes by sentinel: validation failures are 422 with the
// specific message, disabled features are 503 with "enabled": false, a running
// reindex is 409, and store failures are 500 with a generic message.
package chi
