package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/analytics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/indexer"
	logpkg "github.com/ArtisanPack-UI/cms-framework-sub002/internal/logger"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/metrics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/searcher"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// Error codes returned in error bodies
const (
	codeBadRequest      = "bad_request"
	codeValidation      = "validation_failed"
	codeUnauthorized    = "unauthorized"
	codeFeatureDisabled = "feature_disabled"
	codeConflict        = "reindex_in_progress"
	codeSearchFailed    = "search_failed"
	codeInternal        = "internal_error"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Enabled *bool  `json:"enabled,omitempty"` // false when the feature is switched off
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes search, facets, suggestions, analytics, status and index sync over HTTP.
type Server struct {
	search        *searcher.Searcher
	analytics     *analytics.Service
	indexer       *indexer.Indexer
	auth          *APIKeys
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searcher.Searcher,
	analyticsSvc *analytics.Service,
	idx *indexer.Indexer,
	auth *APIKeys,
	logger *zap.Logger,
) *Server {
	if auth == nil {
		auth = NewAPIKeys(nil)
	}
	s := &Server{
		search:    search,
		analytics: analyticsSvc,
		indexer:   idx,
		auth:      auth,
		logger:    logpkg.OrNop(logger),
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		disabledHandler,
		sentinelHandler(indexer.ErrReindexInProgress, http.StatusConflict, codeConflict),
		s.executionHandler,
	}
	return s
}

// Handler builds the chi router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/search", func(r gochi.Router) {
		r.Get("/", s.SearchQuery)
		r.Post("/", s.SearchBody)
		r.Get("/facets", s.Facets)
		r.Get("/suggest", s.Suggest)
		r.Get("/status", s.Status)

		r.Group(func(r gochi.Router) {
			r.Use(s.auth.Require)
			r.Get("/analytics", s.Analytics)
			r.Post("/index/events", s.IndexEvent)
			r.Post("/index/reindex", s.Reindex)
		})
	})
	return r
}

// SearchQuery handles GET /api/search.
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFromQuery(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.runSearch(w, r, req)
}

// SearchBody handles POST /api/search.
func (s *Server) SearchBody(w http.ResponseWriter, r *http.Request) {
	var body SearchBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.runSearch(w, r, body.request())
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req searcher.SearchRequest) {
	req.IncludeUnpublished = req.IncludeUnpublished && s.auth.Authorized(r)
	req.UseCache = true
	req.Caller = callerFromRequest(r)

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Wire())
}

// Facets handles GET /api/search/facets.
func (s *Server) Facets(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFromQuery(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	facets, err := s.search.Facets(r.Context(), searcher.FacetRequest{
		Query:              req.Query,
		Filters:            req.Filters,
		Mode:               req.Mode,
		IncludeUnpublished: req.IncludeUnpublished && s.auth.Authorized(r),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FacetsResponse{Facets: facets})
}

// Suggest handles GET /api/search/suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	suggestions, err := s.search.Suggest(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

// Analytics handles GET /api/search/analytics.
func (s *Server) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := timeParam(q, "date_from", false)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	to, err := timeParam(q, "date_to", true)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	var fromT, toT time.Time
	if from != nil {
		fromT = *from
	}
	if to != nil {
		toT = *to
	}

	report, err := s.analytics.Analytics(r.Context(), fromT, toT, analytics.ReportOptions{Limit: limit})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Status handles GET /api/search/status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	st, err := s.search.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// IndexEvent handles POST /api/search/index/events.
// A well-formed event is always accepted; sync failures are logged, not returned.
func (s *Server) IndexEvent(w http.ResponseWriter, r *http.Request) {
	var ev indexer.Event
	if !decodeBody(w, r, &ev) {
		return
	}
	if err := ev.Validate(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.indexer.HandleEvent(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, EventResponse{Accepted: true})
}

// Reindex handles POST /api/search/index/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexer.ReindexAll(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func validationHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, types.ErrValidation) {
		return false
	}
	writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
	return true
}

func disabledHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, types.ErrFeatureDisabled) {
		return false
	}
	off := false
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Code:    codeFeatureDisabled,
		Message: err.Error(),
		Enabled: &off,
	})
	return true
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// executionHandler answers store failures and timeouts with a sanitized message.
func (s *Server) executionHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, types.ErrQueryExecution) {
		return false
	}
	writeError(w, http.StatusInternalServerError, codeSearchFailed, types.ErrQueryExecution.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Debug("request rejected", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
