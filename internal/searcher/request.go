package searcher

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// SearchMode selects the text match semantics
type SearchMode string

const (
	ModeNatural        SearchMode = "natural"        // ranked match on any term
	ModeBoolean        SearchMode = "boolean"        // +required -excluded "phrase" prefix*
	ModeQueryExpansion SearchMode = "queryExpansion" // terms plus stems and synonyms
)

// SortField selects the result ordering
type SortField string

const (
	SortRelevance SortField = "relevance"
	SortDate      SortField = "date"
	SortTitle     SortField = "title"
	SortCategory  SortField = "category"
)

// Direction is the sort direction
type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// Filters restrict the candidate set. Empty values are ignored.
type Filters struct {
	Categories  []string            `json:"category,omitempty"`
	Authors     []string            `json:"author,omitempty"`
	Statuses    []string            `json:"status,omitempty"`
	SourceTypes []string            `json:"source_type,omitempty"`
	DateFrom    *time.Time          `json:"date_from,omitempty"`
	DateTo      *time.Time          `json:"date_to,omitempty"`
	Metadata    map[string][]string `json:"metadata,omitempty"`
}

// Caller identifies who issued a search, for analytics
type Caller struct {
	UserID    string
	IP        string
	UserAgent string
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query              string
	Filters            Filters
	Page               int // 1-based; 0 means 1
	PerPage            int // 0 means the configured default
	Mode               SearchMode
	Sort               SortField
	Direction          Direction
	IncludeUnpublished bool            // caller may see drafts and scheduled entries
	WithFacets         bool            // attach facet counts to the response
	Weights            *config.Weights // per-call relevance weights
	UseCache           bool
	Caller             Caller
}

// FacetRequest contains parameters for a facet aggregation
type FacetRequest struct {
	Query              string
	Filters            Filters
	Mode               SearchMode
	IncludeUnpublished bool
}

// validateRequest checks and normalizes a search request in place
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = s.normalizeQuery(req.Query)

	if err := validateMode(&req.Mode); err != nil {
		return err
	}

	switch req.Sort {
	case "":
		req.Sort = SortRelevance
	case SortRelevance, SortDate, SortTitle, SortCategory:
	default:
		return types.NewValidationError("sort", "unsupported sort %q (want relevance, date, title or category)", req.Sort)
	}

	switch Direction(strings.ToLower(string(req.Direction))) {
	case "":
		req.Direction = DirectionDesc
	case DirectionAsc:
		req.Direction = DirectionAsc
	case DirectionDesc:
		req.Direction = DirectionDesc
	default:
		return types.NewValidationError("direction", "unsupported direction %q (want asc or desc)", req.Direction)
	}

	if req.Page < 0 {
		return types.NewValidationError("page", "page must be >= 1")
	}
	if req.Page == 0 {
		req.Page = 1
	}

	if req.PerPage < 0 {
		return types.NewValidationError("per_page", "per_page must be >= 1")
	}
	if req.PerPage == 0 {
		req.PerPage = s.cfg.Search.DefaultPerPage
	}
	if req.PerPage > s.cfg.Search.MaxPerPage {
		req.PerPage = s.cfg.Search.MaxPerPage
	}

	if req.Weights != nil {
		if err := validateWeights(req.Weights); err != nil {
			return err
		}
	}

	return normalizeFilters(&req.Filters)
}

func (s *Searcher) validateFacetRequest(req *FacetRequest) error {
	req.Query = s.normalizeQuery(req.Query)
	if err := validateMode(&req.Mode); err != nil {
		return err
	}
	return normalizeFilters(&req.Filters)
}

// normalizeQuery trims the query and truncates it to the configured maximum length
func (s *Searcher) normalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	maxLen := s.cfg.Search.MaxQueryLength
	if maxLen > 0 && utf8.RuneCountInString(q) > maxLen {
		q = strings.TrimSpace(string([]rune(q)[:maxLen]))
	}
	return q
}

func validateMode(mode *SearchMode) error {
	switch *mode {
	case "":
		*mode = ModeNatural
	case ModeNatural, ModeBoolean, ModeQueryExpansion:
	default:
		return types.NewValidationError("mode", "unsupported mode %q (want natural, boolean or queryExpansion)", *mode)
	}
	return nil
}

func validateWeights(w *config.Weights) error {
	for name, v := range map[string]float64{
		"text": w.Text, "type": w.Type, "freshness": w.Freshness,
		"author": w.Author, "manual": w.Manual, "engagement": w.Engagement,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.NewValidationError("weights."+name, "weight must be a finite non-negative number")
		}
	}
	return nil
}

// normalizeFilters trims values, drops empties and validates enumerated dimensions
func normalizeFilters(f *Filters) error {
	f.Categories = cleanValues(f.Categories)
	f.Authors = cleanValues(f.Authors)
	f.Statuses = cleanValues(f.Statuses)
	f.SourceTypes = cleanValues(f.SourceTypes)

	for _, st := range f.Statuses {
		if _, err := types.ParseStatus(st); err != nil {
			return err
		}
	}
	for _, kind := range f.SourceTypes {
		if _, err := types.ParseSourceKind(kind); err != nil {
			return err
		}
	}

	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return types.NewValidationError("date_from", "date_from must not be after date_to")
	}

	if len(f.Metadata) > 0 {
		cleaned := make(map[string][]string, len(f.Metadata))
		for k, v := range f.Metadata {
			k = strings.TrimSpace(k)
			if vals := cleanValues(v); k != "" && len(vals) > 0 {
				cleaned[k] = vals
			}
		}
		f.Metadata = cleaned
	}
	if len(f.Metadata) == 0 {
		f.Metadata = nil
	}
	return nil
}

// cleanValues trims, drops empty and duplicate values, and sorts the rest
func cleanValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
