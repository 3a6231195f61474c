package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/analytics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/metrics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/scorer"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// ErrScanBudgetExceeded is returned when a relevance-ranked query matches more entries than max_scan allows
var ErrScanBudgetExceeded = errors.New("result scan budget exceeded")

// Recorder receives one record per executed search
type Recorder interface {
	LogSearch(ctx context.Context, search analytics.Search)
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results   []types.SearchResult
	Total     int // exact number of matching entries
	Page      int
	PerPage   int
	Mode      SearchMode
	Sort      SortField
	Direction Direction
	Facets    map[string][]types.FacetValue // nil unless requested
	Duration  time.Duration
	CacheHit  bool
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Options configures a Searcher
type Options struct {
	Config   config.Config
	Scorer   *scorer.Scorer // nil builds one from Config.Scoring
	Recorder Recorder       // nil disables search logging
	Hooks    Hooks
	Logger   *zap.Logger
	Now      func() time.Time
}

// Searcher plans and executes searches, facet aggregations and suggestions
type Searcher struct {
	storage  storage.Storage
	cfg      config.Config
	weights  config.Weights
	scorer   *scorer.Scorer
	recorder Recorder
	hooks    Hooks
	logger   *zap.Logger
	now      func() time.Time

	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheTTL time.Duration
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, opts Options) *Searcher {
	cfg := opts.Config
	cfg.ApplyDefaults()

	s := &Searcher{
		storage:  store,
		cfg:      cfg,
		weights:  *cfg.Scoring.Weights,
		scorer:   opts.Scorer,
		recorder: opts.Recorder,
		hooks:    opts.Hooks,
		logger:   opts.Logger,
		now:      opts.Now,
		cacheTTL: time.Duration(cfg.Search.CacheTTLSec) * time.Second,
	}
	if s.scorer == nil {
		s.scorer = scorer.New(scorer.OptionsFromConfig(cfg.Scoring))
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("searcher")
	if s.now == nil {
		s.now = time.Now
	}

	if cfg.Search.CacheSize > 0 {
		cache, err := lru.New[[32]byte, *cacheEntry](cfg.Search.CacheSize)
		if err != nil {
			// This should never happen with valid size parameter
			panic(fmt.Sprintf("failed to create LRU cache: %v", err))
		}
		s.cache = cache
	}

	return s
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if !enabled(s.cfg.Search.Enabled) {
		return nil, &types.FeatureDisabledError{Feature: "search"}
	}

	// Validate request
	if err := s.validateRequest(&req); err != nil {
		metrics.SearchTotal.WithLabelValues(string(req.Mode), "invalid").Inc()
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	// Check cache if enabled
	useCache := req.UseCache && s.cache != nil
	var cacheKey [32]byte
	if useCache {
		key, err := computeQueryHash(req)
		if err != nil {
			// Unhashable requests skip the cache
			s.logger.Warn("search cache key failed", zap.Error(err))
			useCache = false
		}
		cacheKey = key
	}
	if useCache {
		if cached := s.checkCache(cacheKey); cached != nil {
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			s.record(ctx, req, cached)
			metrics.SearchTotal.WithLabelValues(string(req.Mode), "cached").Inc()
			return cached, nil
		}
		metrics.CacheTotal.WithLabelValues("miss").Inc()
	}

	execCtx, cancel := context.WithTimeout(ctx, s.queryTimeout())
	defer cancel()

	response, err := s.execute(execCtx, req)
	if err != nil {
		metrics.SearchTotal.WithLabelValues(string(req.Mode), "error").Inc()
		return nil, s.executionError("search", req.Query, err)
	}

	if req.WithFacets && enabled(s.cfg.Search.FacetsEnabled) {
		response.Facets, err = s.facets(execCtx, FacetRequest{
			Query:              req.Query,
			Filters:            req.Filters,
			Mode:               req.Mode,
			IncludeUnpublished: req.IncludeUnpublished,
		})
		if err != nil {
			metrics.SearchTotal.WithLabelValues(string(req.Mode), "error").Inc()
			return nil, s.executionError("facets", req.Query, err)
		}
	}

	for _, hook := range s.hooks.AfterSearch {
		hook(ctx, &req, response)
	}

	response.Duration = time.Since(startTime)
	metrics.SearchDuration.WithLabelValues(string(req.Mode)).Observe(response.Duration.Seconds())
	outcome := "ok"
	if response.Total == 0 {
		outcome = "empty"
	}
	metrics.SearchTotal.WithLabelValues(string(req.Mode), outcome).Inc()

	// Store in cache if enabled
	if useCache {
		s.storeInCache(cacheKey, response)
	}

	s.record(ctx, req, response)
	return response, nil
}

// execute runs the planned query against the index store
func (s *Searcher) execute(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	response := &SearchResponse{
		Results:   []types.SearchResult{},
		Page:      req.Page,
		PerPage:   req.PerPage,
		Mode:      req.Mode,
		Sort:      req.Sort,
		Direction: req.Direction,
	}

	now := s.now()
	criteria, ok, err := s.buildCriteria(req.Query, req.Mode, req.Filters, req.IncludeUnpublished, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Query text without any searchable terms matches nothing
		return response, nil
	}

	total, err := s.storage.CountCandidates(ctx, criteria)
	if err != nil {
		return nil, err
	}
	response.Total = total
	if total == 0 {
		return response, nil
	}

	weights := s.weights
	if req.Weights != nil {
		weights = *req.Weights
	}
	offset := (req.Page - 1) * req.PerPage

	if req.Sort == SortRelevance {
		if total > s.cfg.Search.MaxScan {
			return nil, fmt.Errorf("%w: %d matches, limit %d", ErrScanBudgetExceeded, total, s.cfg.Search.MaxScan)
		}
		candidates, err := s.storage.SearchCandidates(ctx, criteria, storage.Page{
			Order: storage.OrderRank,
			Limit: s.cfg.Search.MaxScan,
		})
		if err != nil {
			return nil, err
		}
		scored := s.scoreCandidates(ctx, candidates, maxRawScore(candidates), weights, now)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				if req.Direction == DirectionAsc {
					return scored[i].Score < scored[j].Score
				}
				return scored[i].Score > scored[j].Score
			}
			return scored[i].Entry.ID < scored[j].Entry.ID
		})

		if offset < len(scored) {
			end := offset + req.PerPage
			if end > len(scored) {
				end = len(scored)
			}
			response.Results = scored[offset:end]
		}
	} else {
		candidates, err := s.storage.SearchCandidates(ctx, criteria, storage.Page{
			Order:  sortOrder(req.Sort),
			Desc:   req.Direction == DirectionDesc,
			Limit:  req.PerPage,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		if criteria.Match != "" {
			// Text relevance is relative to the best match overall, not just this page
			best, err := s.storage.SearchCandidates(ctx, criteria, storage.Page{Order: storage.OrderRank, Limit: 1})
			if err != nil {
				return nil, err
			}
			response.Results = s.scoreCandidates(ctx, candidates, maxRawScore(best), weights, now)
		} else {
			response.Results = make([]types.SearchResult, len(candidates))
			for i, c := range candidates {
				response.Results[i] = types.SearchResult{Entry: c.Entry, Snippet: snippetFor(c)}
			}
		}
	}

	for i := range response.Results {
		response.Results[i].Rank = offset + i + 1
	}
	return response, nil
}

func maxRawScore(candidates []storage.Candidate) float64 {
	maxRaw := 0.0
	for _, c := range candidates {
		if c.RawScore > maxRaw {
			maxRaw = c.RawScore
		}
	}
	return maxRaw
}

// scoreCandidates normalizes raw text scores against maxRaw and applies the composite scorer
func (s *Searcher) scoreCandidates(ctx context.Context, candidates []storage.Candidate, maxRaw float64, weights config.Weights, now time.Time) []types.SearchResult {
	results := make([]types.SearchResult, len(candidates))
	for i, c := range candidates {
		text := 0.0
		if maxRaw > 0 {
			text = math.Min(c.RawScore/maxRaw, 1)
		}

		input := &ScoreInput{
			Entry:      c.Entry,
			Components: s.scorer.Components(c.Entry, text, now),
			Weights:    weights,
		}
		for _, hook := range s.hooks.BeforeScore {
			hook(ctx, input)
		}

		results[i] = types.SearchResult{
			Score:         scorer.Combine(input.Components, input.Weights),
			TextRelevance: input.Components.TextRelevance,
			Snippet:       snippetFor(c),
			Entry:         c.Entry,
		}
	}
	return results
}

// buildCriteria turns query text and filters into store criteria.
// ok is false when the query has text but no searchable terms.
func (s *Searcher) buildCriteria(query string, mode SearchMode, f Filters, includeUnpublished bool, now time.Time) (*storage.Criteria, bool, error) {
	criteria := &storage.Criteria{
		SourceTypes: f.SourceTypes,
		Categories:  f.Categories,
		Authors:     f.Authors,
		Statuses:    f.Statuses,
		DateFrom:    f.DateFrom,
		DateTo:      f.DateTo,
		Metadata:    f.Metadata,
	}
	if !includeUnpublished {
		criteria.VisibleAt = &now
	}

	if query == "" {
		return criteria, true, nil
	}
	match, err := buildMatch(query, mode, s.cfg.Search.Synonyms)
	if err != nil {
		return nil, false, err
	}
	if match == "" {
		return criteria, false, nil
	}
	criteria.Match = match
	return criteria, true, nil
}

func sortOrder(field SortField) storage.Order {
	switch field {
	case SortDate:
		return storage.OrderPublished
	case SortTitle:
		return storage.OrderTitle
	case SortCategory:
		return storage.OrderCategory
	default:
		return storage.OrderRank
	}
}

func snippetFor(c storage.Candidate) string {
	if c.Snippet != "" {
		return c.Snippet
	}
	return c.Entry.Excerpt
}

// executionError logs the full cause and returns the sanitized error.
// Validation errors raised while planning pass through unchanged.
func (s *Searcher) executionError(op, query string, err error) error {
	if errors.Is(err, types.ErrValidation) {
		return err
	}
	s.logger.Error("query execution failed",
		zap.String("op", op),
		zap.String("query", query),
		zap.Error(err),
	)
	return &types.QueryExecutionError{Op: op, Err: err}
}

func (s *Searcher) record(ctx context.Context, req SearchRequest, resp *SearchResponse) {
	if s.recorder == nil {
		return
	}
	s.recorder.LogSearch(ctx, analytics.Search{
		Query:         req.Query,
		Filters:       req.Filters,
		Mode:          string(req.Mode),
		ResultCount:   resp.Total,
		ExecutionTime: resp.Duration,
		UserID:        req.Caller.UserID,
		IP:            req.Caller.IP,
		UserAgent:     req.Caller.UserAgent,
	})
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(hash [32]byte) *SearchResponse {
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	// Check if entry has expired while holding read lock to avoid race condition
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		// Remove expired entry - need write lock
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(hash [32]byte, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after any index mutation.
func (s *Searcher) InvalidateCache() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result
		// Entry metadata values are immutable, so a struct copy is sufficient
		if result.Entry != nil {
			entryCopy := *result.Entry
			dst.Results[i].Entry = &entryCopy
		}
	}

	if src.Facets != nil {
		dst.Facets = make(map[string][]types.FacetValue, len(src.Facets))
		for dim, values := range src.Facets {
			dst.Facets[dim] = append([]types.FacetValue(nil), values...)
		}
	}

	return &dst
}

// computeQueryHash computes a unique hash for a normalized search request
func computeQueryHash(req SearchRequest) ([32]byte, error) {
	// Caller identity does not influence results
	req.Caller = Caller{}
	req.UseCache = false
	// encoding/json sorts map keys, so the encoding is deterministic
	data, err := json.Marshal(req)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash search request: %w", err)
	}
	return sha256.Sum256(data), nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
