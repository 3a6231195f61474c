package chi

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/searcher"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// metaPrefix marks metadata filters in query strings, e.g. meta.color=red
const metaPrefix = "meta."

// userIDHeader carries the authenticated CMS user, set by the fronting application
const userIDHeader = "X-User-ID"

// SearchBody is the JSON body of POST /api/search
type SearchBody struct {
	Query              string           `json:"q"`
	Filters            searcher.Filters `json:"filters"`
	Page               int              `json:"page"`
	PerPage            int              `json:"per_page"`
	Mode               string           `json:"mode"`
	Sort               string           `json:"sort"`
	Direction          string           `json:"direction"`
	IncludeUnpublished bool             `json:"include_unpublished"`
	Facets             bool             `json:"facets"`
	Weights            *config.Weights  `json:"weights,omitempty"`
}

func (b *SearchBody) request() searcher.SearchRequest {
	return searcher.SearchRequest{
		Query:              b.Query,
		Filters:            b.Filters,
		Page:               b.Page,
		PerPage:            b.PerPage,
		Mode:               searcher.SearchMode(b.Mode),
		Sort:               searcher.SortField(b.Sort),
		Direction:          searcher.Direction(b.Direction),
		IncludeUnpublished: b.IncludeUnpublished,
		WithFacets:         b.Facets,
		Weights:            b.Weights,
	}
}

// FacetsResponse is the body of GET /api/search/facets
type FacetsResponse struct {
	Facets map[string][]types.FacetValue `json:"facets"`
}

// SuggestResponse is the body of GET /api/search/suggest
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// EventResponse acknowledges a lifecycle event
type EventResponse struct {
	Accepted bool `json:"accepted"`
}

// searchRequestFromQuery maps query-string parameters onto a search request.
// List filters accept repeated parameters and comma-separated values.
func searchRequestFromQuery(q url.Values) (searcher.SearchRequest, error) {
	req := searcher.SearchRequest{
		Query:     q.Get("q"),
		Mode:      searcher.SearchMode(q.Get("mode")),
		Sort:      searcher.SortField(q.Get("sort")),
		Direction: searcher.Direction(q.Get("direction")),
		Filters: searcher.Filters{
			Categories:  listParam(q, "category"),
			Authors:     listParam(q, "author"),
			Statuses:    listParam(q, "status"),
			SourceTypes: listParam(q, "source_type"),
		},
	}

	var err error
	if req.Page, err = intParam(q, "page"); err != nil {
		return req, err
	}
	if req.PerPage, err = intParam(q, "per_page"); err != nil {
		return req, err
	}
	if req.IncludeUnpublished, err = boolParam(q, "include_unpublished"); err != nil {
		return req, err
	}
	if req.WithFacets, err = boolParam(q, "facets"); err != nil {
		return req, err
	}
	if req.Filters.DateFrom, err = timeParam(q, "date_from", false); err != nil {
		return req, err
	}
	if req.Filters.DateTo, err = timeParam(q, "date_to", true); err != nil {
		return req, err
	}

	for key := range q {
		name, ok := strings.CutPrefix(key, metaPrefix)
		if !ok || name == "" {
			continue
		}
		if req.Filters.Metadata == nil {
			req.Filters.Metadata = make(map[string][]string)
		}
		req.Filters.Metadata[name] = listParam(q, key)
	}
	return req, nil
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func intParam(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewValidationError(key, "must be an integer, got %q", raw)
	}
	return n, nil
}

func boolParam(q url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, types.NewValidationError(key, "must be a boolean, got %q", raw)
	}
	return b, nil
}

// timeParam accepts RFC 3339 timestamps or plain dates. A plain date used as an
// upper bound covers the whole day.
func timeParam(q url.Values, key string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, types.NewValidationError(key, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp, got %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

func callerFromRequest(r *http.Request) searcher.Caller {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return searcher.Caller{
		UserID:    r.Header.Get(userIDHeader),
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
