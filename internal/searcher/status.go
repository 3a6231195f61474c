package searcher

import (
	"context"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
)

// Engine names the full-text backend reported by Status
const Engine = "sqlite-fts5"

// Status describes the search subsystem and its index
type Status struct {
	Enabled       bool           `json:"enabled"`
	Engine        string         `json:"engine"`
	Driver        string         `json:"driver"`
	IndexedCount  int            `json:"indexed_count"`
	VisibleCount  int            `json:"visible_count"`
	ByType        map[string]int `json:"by_type"`
	LastIndexedAt *time.Time     `json:"last_indexed_at,omitempty"`
	QueryLogCount int            `json:"query_log_count"`
	IndexSizeMB   float64        `json:"index_size_mb"`
	SchemaVersion string         `json:"schema_version"`
}

// Status reports whether search is enabled and how many entries are indexed
func (s *Searcher) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Enabled: enabled(s.cfg.Search.Enabled),
		Engine:  Engine,
		Driver:  storage.DriverName + " (" + storage.BuildMode + ")",
		ByType:  map[string]int{},
	}

	idx, err := s.storage.GetStatus(ctx, s.now())
	if err != nil {
		return nil, s.executionError("status", "", err)
	}
	st.IndexedCount = idx.IndexedCount
	st.VisibleCount = idx.VisibleCount
	st.QueryLogCount = idx.QueryLogCount
	st.IndexSizeMB = idx.IndexSizeMB
	st.SchemaVersion = idx.SchemaVersion
	for k, v := range idx.ByType {
		st.ByType[k] = v
	}
	if !idx.LastIndexedAt.IsZero() {
		t := idx.LastIndexedAt
		st.LastIndexedAt = &t
	}
	return st, nil
}

func (s *Searcher) queryTimeout() time.Duration {
	if s.cfg.Search.QueryTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.cfg.Search.QueryTimeoutMs) * time.Millisecond
}
