package analytics

import (
	"context"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

const (
	DefaultRangeDays   = 30
	DefaultReportLimit = 10
	MaxReportLimit     = 100
	MaxTrendDays       = 366
)

// ReportOptions tunes an analytics report
type ReportOptions struct {
	Limit int // entries per query list; default 10, capped at 100
}

// Report is the combined analytics view over a date range
type Report struct {
	From           time.Time   `json:"date_from"`
	To             time.Time   `json:"date_to"`
	Performance    Performance `json:"performance"`
	PopularQueries []QueryStat `json:"popular_queries"`
	FailedQueries  []QueryStat `json:"failed_queries"`
	Trends         []DayBucket `json:"trends"`
}

// Performance summarizes search volume and latency
type Performance struct {
	TotalSearches  int     `json:"total_searches"`
	UniqueQueries  int     `json:"unique_queries"`
	AvgResults     float64 `json:"avg_results"`
	AvgExecutionMs float64 `json:"avg_execution_ms"`
	SuccessRate    float64 `json:"success_rate"` // share of searches with at least one result, in [0, 1]
}

// QueryStat is one row of the popular or failed query lists
type QueryStat struct {
	Query          string    `json:"query"`
	Searches       int       `json:"searches"`
	AvgResults     float64   `json:"avg_results"`
	AvgExecutionMs float64   `json:"avg_execution_ms"`
	LastSearchedAt time.Time `json:"last_searched_at"`
}

// DayBucket is one UTC day of search activity
type DayBucket struct {
	Date           string  `json:"date"`
	Searches       int     `json:"searches"`
	Failed         int     `json:"failed"`
	AvgExecutionMs float64 `json:"avg_execution_ms"`
}

// Analytics builds the full report for [from, to]. Zero bounds default to the last 30 days.
func (s *Service) Analytics(ctx context.Context, from, to time.Time, opts ReportOptions) (*Report, error) {
	if !s.opts.Enabled {
		return nil, &types.FeatureDisabledError{Feature: "search analytics"}
	}

	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(opts.Limit)

	perf, err := s.performance(ctx, from, to)
	if err != nil {
		return nil, err
	}
	popular, err := s.store.PopularQueries(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	failed, err := s.store.FailedQueries(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	trends, err := s.trends(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Report{
		From:           from,
		To:             to,
		Performance:    *perf,
		PopularQueries: convertStats(popular),
		FailedQueries:  convertStats(failed),
		Trends:         trends,
	}, nil
}

// PopularQueries returns the most frequent queries in [from, to]
func (s *Service) PopularQueries(ctx context.Context, from, to time.Time, limit int) ([]QueryStat, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.PopularQueries(ctx, from, to, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return convertStats(stats), nil
}

// FailedQueries returns the most frequent zero-result queries in [from, to]
func (s *Service) FailedQueries(ctx context.Context, from, to time.Time, limit int) ([]QueryStat, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.FailedQueries(ctx, from, to, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return convertStats(stats), nil
}

// PerformanceStats summarizes searches in [from, to]
func (s *Service) PerformanceStats(ctx context.Context, from, to time.Time) (*Performance, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.performance(ctx, from, to)
}

// Trends returns one bucket per UTC day for the last days days, today included
func (s *Service) Trends(ctx context.Context, days int) ([]DayBucket, error) {
	if days <= 0 {
		days = DefaultRangeDays
	}
	if days > MaxTrendDays {
		days = MaxTrendDays
	}
	to := s.opts.Now().UTC()
	from := startOfDay(to).AddDate(0, 0, -(days - 1))
	return s.trends(ctx, from, to)
}

func (s *Service) performance(ctx context.Context, from, to time.Time) (*Performance, error) {
	stats, err := s.store.PerformanceStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	perf := &Performance{
		TotalSearches:  stats.TotalSearches,
		UniqueQueries:  stats.UniqueQueries,
		AvgResults:     stats.AvgResults,
		AvgExecutionMs: stats.AvgExecutionMs,
	}
	if stats.TotalSearches > 0 {
		perf.SuccessRate = float64(stats.Successful) / float64(stats.TotalSearches)
	}
	return perf, nil
}

// trends zero-fills every UTC day between from and to
func (s *Service) trends(ctx context.Context, from, to time.Time) ([]DayBucket, error) {
	counts, err := s.store.DailyCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]storage.DailyCount, len(counts))
	for _, c := range counts {
		byDay[c.Day] = c
	}

	buckets := make([]DayBucket, 0)
	for day := startOfDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		c := byDay[key]
		buckets = append(buckets, DayBucket{
			Date:           key,
			Searches:       c.Searches,
			Failed:         c.Failed,
			AvgExecutionMs: c.AvgExecutionMs,
		})
	}
	return buckets, nil
}

func (s *Service) normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.opts.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -DefaultRangeDays)
	}
	from, to = from.UTC(), to.UTC()
	if from.After(to) {
		return from, to, types.NewValidationError("date_from", "date_from must not be after date_to")
	}
	return from, to, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultReportLimit
	}
	if limit > MaxReportLimit {
		return MaxReportLimit
	}
	return limit
}

func convertStats(stats []storage.QueryStat) []QueryStat {
	out := make([]QueryStat, len(stats))
	for i, st := range stats {
		out[i] = QueryStat{
			Query:          st.Query,
			Searches:       st.Searches,
			AvgResults:     st.AvgResults,
			AvgExecutionMs: st.AvgExecutionMs,
			LastSearchedAt: st.LastSearchedAt,
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
