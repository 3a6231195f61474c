package searcher

import (
	"context"
	"sort"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// Facets counts entries per value of each facet dimension. Each dimension is counted
// with every filter applied except its own, plus the text match and visibility rules.
func (s *Searcher) Facets(ctx context.Context, req FacetRequest) (map[string][]types.FacetValue, error) {
	if !enabled(s.cfg.Search.Enabled) || !enabled(s.cfg.Search.FacetsEnabled) {
		return nil, &types.FeatureDisabledError{Feature: "search facets"}
	}
	if err := s.validateFacetRequest(&req); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, s.queryTimeout())
	defer cancel()

	facets, err := s.facets(execCtx, req)
	if err != nil {
		return nil, s.executionError("facets", req.Query, err)
	}
	return facets, nil
}

// facets expects a validated request
func (s *Searcher) facets(ctx context.Context, req FacetRequest) (map[string][]types.FacetValue, error) {
	criteria, ok, err := s.buildCriteria(req.Query, req.Mode, req.Filters, req.IncludeUnpublished, s.now())
	if err != nil {
		return nil, err
	}

	dims := s.facetDimensions(req.Filters)
	out := make(map[string][]types.FacetValue, len(dims))
	for _, dim := range dims {
		if !ok {
			out[dim.Name] = []types.FacetValue{}
			continue
		}
		values, err := s.storage.FacetCounts(ctx, criteria.Without(dim), dim, s.cfg.Facets.MaxValues)
		if err != nil {
			return nil, err
		}
		out[dim.Name] = values
	}
	return out, nil
}

// facetDimensions lists the built-in dimensions, configured metadata keys and
// any metadata keys the caller is filtering on
func (s *Searcher) facetDimensions(f Filters) []storage.Dimension {
	dims := []storage.Dimension{
		storage.DimCategory,
		storage.DimStatus,
		storage.DimAuthor,
		storage.DimSourceType,
	}

	seen := make(map[string]bool)
	for _, d := range dims {
		seen[d.Name] = true
	}

	keys := append([]string(nil), s.cfg.Facets.MetadataKeys...)
	extra := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		dims = append(dims, storage.MetadataDimension(k))
	}
	return dims
}
