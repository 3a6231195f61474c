package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/metrics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

const writeTimeout = 5 * time.Second

// Store is the subset of storage.Storage used for search analytics
type Store interface {
	InsertQueryLog(ctx context.Context, entry *types.SearchQueryLog) error
	PopularQueries(ctx context.Context, from, to time.Time, limit int) ([]storage.QueryStat, error)
	FailedQueries(ctx context.Context, from, to time.Time, limit int) ([]storage.QueryStat, error)
	PerformanceStats(ctx context.Context, from, to time.Time) (*storage.PerformanceStats, error)
	DailyCounts(ctx context.Context, from, to time.Time) ([]storage.DailyCount, error)
	DeleteQueryLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Search describes one executed search to be logged
type Search struct {
	Query         string
	Filters       interface{} // encoded as JSON
	Mode          string
	ResultCount   int
	ExecutionTime time.Duration
	UserID        string
	IP            string // hashed before storage
	UserAgent     string
}

// Options configures the analytics service
type Options struct {
	Enabled            bool
	RetentionDays      int
	IPSalt             string
	BufferSize         int
	MaxQueryLength     int
	MaxUserAgentLength int
	Now                func() time.Time
}

// OptionsFromConfig builds service options from the analytics configuration
func OptionsFromConfig(cfg config.AnalyticsConfig) Options {
	return Options{
		Enabled:            cfg.Enabled == nil || *cfg.Enabled,
		RetentionDays:      cfg.RetentionDays,
		IPSalt:             cfg.IPSalt,
		BufferSize:         cfg.BufferSize,
		MaxQueryLength:     cfg.MaxQueryLength,
		MaxUserAgentLength: cfg.MaxUserAgentLength,
	}
}

// Service records searches asynchronously and serves analytics reports.
// LogSearch never blocks the caller: when the buffer is full the record is dropped.
type Service struct {
	store  Store
	opts   Options
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *types.SearchQueryLog
	done   chan struct{}
}

// New creates the service and starts its background writer
func New(store Store, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = 255
	}
	if opts.MaxUserAgentLength <= 0 {
		opts.MaxUserAgentLength = 500
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 90
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		store:  store,
		opts:   opts,
		logger: logger.Named("analytics"),
		queue:  make(chan *types.SearchQueryLog, opts.BufferSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Enabled reports whether searches are being recorded
func (s *Service) Enabled() bool {
	return s.opts.Enabled
}

// LogSearch queues a search for storage. The IP is hashed and free-text fields are truncated.
func (s *Service) LogSearch(_ context.Context, search Search) {
	if !s.opts.Enabled {
		return
	}

	row := &types.SearchQueryLog{
		Query:           truncate(search.Query, s.opts.MaxQueryLength),
		Filters:         encodeFilters(search.Filters),
		Mode:            search.Mode,
		ResultCount:     search.ResultCount,
		ExecutionTimeMs: search.ExecutionTime.Milliseconds(),
		UserID:          search.UserID,
		IPHash:          HashIP(s.opts.IPSalt, search.IP),
		UserAgent:       truncate(search.UserAgent, s.opts.MaxUserAgentLength),
		SearchedAt:      s.opts.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		metrics.AnalyticsDroppedTotal.Inc()
		s.logger.Warn("search log buffer full, dropping record", zap.String("query", row.Query))
	}
}

func (s *Service) run() {
	defer close(s.done)
	for row := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.store.InsertQueryLog(ctx, row); err != nil {
			s.logger.Warn("failed to write search log",
				zap.String("query", row.Query),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close stops accepting records and waits until queued records are written
func (s *Service) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

// Prune deletes log rows older than the retention window
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := s.opts.Now().UTC().AddDate(0, 0, -s.opts.RetentionDays)
	removed, err := s.store.DeleteQueryLogsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("pruned search logs",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

// HashIP returns the salted SHA-256 of ip in hex, or "" for an empty address
func HashIP(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

func encodeFilters(filters interface{}) string {
	if filters == nil {
		return "{}"
	}
	data, err := json.Marshal(filters)
	if err != nil || string(data) == "null" {
		return "{}"
	}
	return string(data)
}
