package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// InsertQueryLog appends one search log row
func (s *SQLiteStorage) InsertQueryLog(ctx context.Context, entry *types.SearchQueryLog) error {
	filters := entry.Filters
	if filters == "" {
		filters = "{}"
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO search_query_logs (
			query, filters, mode, result_count, execution_time_ms,
			user_id, ip_hash, user_agent, searched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Query, filters, entry.Mode, entry.ResultCount, entry.ExecutionTimeMs,
		entry.UserID, entry.IPHash, entry.UserAgent, entry.SearchedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// PopularQueries ranks case-folded queries by search count within [from, to]
func (s *SQLiteStorage) PopularQueries(ctx context.Context, from, to time.Time, limit int) ([]QueryStat, error) {
	return s.queryStats(ctx, "", from, to, limit)
}

// FailedQueries ranks case-folded queries that returned no results within [from, to]
func (s *SQLiteStorage) FailedQueries(ctx context.Context, from, to time.Time, limit int) ([]QueryStat, error) {
	return s.queryStats(ctx, " AND result_count = 0", from, to, limit)
}

func (s *SQLiteStorage) queryStats(ctx context.Context, extra string, from, to time.Time, limit int) ([]QueryStat, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT lower(query) AS q, COUNT(*) AS n, AVG(result_count), AVG(execution_time_ms), MAX(searched_at)
		FROM search_query_logs
		WHERE searched_at >= ? AND searched_at <= ? AND query != ''` + extra + `
		GROUP BY q
		ORDER BY n DESC, q ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, from.Unix(), to.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate query logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]QueryStat, 0)
	for rows.Next() {
		var st QueryStat
		var last int64
		if err := rows.Scan(&st.Query, &st.Searches, &st.AvgResults, &st.AvgExecutionMs, &last); err != nil {
			return nil, err
		}
		st.LastSearchedAt = time.Unix(last, 0).UTC()
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// PerformanceStats summarizes all searches within [from, to]
func (s *SQLiteStorage) PerformanceStats(ctx context.Context, from, to time.Time) (*PerformanceStats, error) {
	var (
		stats      PerformanceStats
		avgResults sql.NullFloat64
		avgExec    sql.NullFloat64
		successful sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT lower(query)),
			AVG(result_count),
			AVG(execution_time_ms),
			SUM(CASE WHEN result_count > 0 THEN 1 ELSE 0 END)
		FROM search_query_logs
		WHERE searched_at >= ? AND searched_at <= ?
	`, from.Unix(), to.Unix()).Scan(&stats.TotalSearches, &stats.UniqueQueries, &avgResults, &avgExec, &successful)
	if err != nil {
		return nil, fmt.Errorf("failed to compute performance stats: %w", err)
	}
	stats.AvgResults = avgResults.Float64
	stats.AvgExecutionMs = avgExec.Float64
	stats.Successful = int(successful.Int64)
	return &stats, nil
}

// DailyCounts buckets searches within [from, to] by UTC day. Days without searches are omitted.
func (s *SQLiteStorage) DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			strftime('%Y-%m-%d', searched_at, 'unixepoch') AS day,
			COUNT(*),
			SUM(CASE WHEN result_count = 0 THEN 1 ELSE 0 END),
			AVG(execution_time_ms)
		FROM search_query_logs
		WHERE searched_at >= ? AND searched_at <= ?
		GROUP BY day
		ORDER BY day ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	days := make([]DailyCount, 0)
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Searches, &d.Failed, &d.AvgExecutionMs); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// DeleteQueryLogsBefore removes log rows searched strictly before cutoff
func (s *SQLiteStorage) DeleteQueryLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM search_query_logs WHERE searched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune query logs: %w", err)
	}
	return result.RowsAffected()
}
