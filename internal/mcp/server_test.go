package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/analytics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/indexer"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/searcher"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func setupServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []*types.Entry{
		{SourceType: types.SourceContent, SourceID: "1", Title: "Release notes", Body: "Search release with facets.",
			Keywords: "release", Category: "news", Status: types.StatusPublished, PublishedAt: &published},
		{SourceType: types.SourceContent, SourceID: "2", Title: "Release draft", Body: "Upcoming release.",
			Category: "news", Status: types.StatusDraft},
		{SourceType: types.SourceTerm, SourceID: "3", Title: "News", Category: "category", Status: types.StatusPublished},
	} {
		_, err := store.UpsertEntry(context.Background(), e)
		require.NoError(t, err)
	}

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	now := func() time.Time { return testNow }

	an := analytics.New(store, analytics.Options{Enabled: true, Now: now}, nil)
	t.Cleanup(an.Close)
	s := searcher.NewSearcher(store, searcher.Options{Config: cfg, Recorder: an, Now: now})
	idx := indexer.New(store, nil, indexer.Options{OnChange: s.InvalidateCache})

	return NewServer(s, an, idx, nil)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := setupServer(t, nil)
	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.searcher)
	assert.NotNil(t, s.analytics)
	assert.NotNil(t, s.indexer)

	for _, tool := range []mcp.Tool{
		searchContentTool(), getFacetsTool(), suggestTool(),
		getAnalyticsTool(), getStatusTool(), reindexTool(),
	} {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
}

func TestHandleSearchContent(t *testing.T) {
	s := setupServer(t, nil)
	ctx := context.Background()

	t.Run("public search", func(t *testing.T) {
		res, err := s.handleSearchContent(ctx, callRequest("search_content", map[string]interface{}{
			"query": "release",
		}))
		require.NoError(t, err)

		var page searcher.ResultPage
		resultJSON(t, res, &page)
		assert.Equal(t, 1, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Release notes", page.Items[0].Title)
	})

	t.Run("unpublished with filters", func(t *testing.T) {
		res, err := s.handleSearchContent(ctx, callRequest("search_content", map[string]interface{}{
			"query":               "release",
			"include_unpublished": true,
			"filters": map[string]interface{}{
				"status": []interface{}{"draft"},
			},
		}))
		require.NoError(t, err)

		var page searcher.ResultPage
		resultJSON(t, res, &page)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "2", page.Items[0].SourceID)
	})

	t.Run("no arguments lists by date", func(t *testing.T) {
		res, err := s.handleSearchContent(ctx, callRequest("search_content", nil))
		require.NoError(t, err)

		var page searcher.ResultPage
		resultJSON(t, res, &page)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := s.handleSearchContent(ctx, callRequest("search_content", map[string]interface{}{
			"query": "release",
			"mode":  "semantic",
		}))
		mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
		assert.Contains(t, mcpErr.Message, "mode")
	})

	t.Run("mistyped argument", func(t *testing.T) {
		_, err := s.handleSearchContent(ctx, callRequest("search_content", map[string]interface{}{
			"page": "two",
		}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleSearchContent_Disabled(t *testing.T) {
	s := setupServer(t, func(cfg *config.Config) {
		off := false
		cfg.Search.Enabled = &off
	})

	_, err := s.handleSearchContent(context.Background(), callRequest("search_content", map[string]interface{}{
		"query": "release",
	}))
	mcpErr := requireMCPError(t, err, ErrorCodeFeatureDisabled)
	assert.Equal(t, map[string]interface{}{"enabled": false}, mcpErr.Data)
}

func TestHandleGetFacets(t *testing.T) {
	s := setupServer(t, nil)

	res, err := s.handleGetFacets(context.Background(), callRequest("get_facets", map[string]interface{}{}))
	require.NoError(t, err)

	var out struct {
		Facets map[string][]types.FacetValue `json:"facets"`
	}
	resultJSON(t, res, &out)
	assert.Equal(t, []types.FacetValue{{Value: "content", Count: 1}, {Value: "term", Count: 1}}, out.Facets["source_type"])
}

func TestHandleSuggest(t *testing.T) {
	s := setupServer(t, nil)
	ctx := context.Background()

	res, err := s.handleSuggest(ctx, callRequest("suggest", map[string]interface{}{"partial": "rel", "limit": 3}))
	require.NoError(t, err)

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	resultJSON(t, res, &out)
	assert.Equal(t, []string{"release", "Release notes"}, out.Suggestions)

	_, err = s.handleSuggest(ctx, callRequest("suggest", map[string]interface{}{"partial": "r"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleGetStatus(t *testing.T) {
	s := setupServer(t, nil)

	res, err := s.handleGetStatus(context.Background(), callRequest("get_status", nil))
	require.NoError(t, err)

	var st searcher.Status
	resultJSON(t, res, &st)
	assert.True(t, st.Enabled)
	assert.Equal(t, 3, st.IndexedCount)
	assert.Equal(t, map[string]int{"content": 2, "term": 1}, st.ByType)
}

func TestHandleGetAnalytics(t *testing.T) {
	s := setupServer(t, nil)

	res, err := s.handleGetAnalytics(context.Background(), callRequest("get_analytics", map[string]interface{}{
		"date_from": "2026-05-25T00:00:00Z",
		"date_to":   "2026-06-01T12:00:00Z",
	}))
	require.NoError(t, err)

	var report analytics.Report
	resultJSON(t, res, &report)
	assert.Len(t, report.Trends, 8)

	_, err = s.handleGetAnalytics(context.Background(), callRequest("get_analytics", map[string]interface{}{
		"date_from": "2026-06-02T00:00:00Z",
		"date_to":   "2026-06-01T00:00:00Z",
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleReindex(t *testing.T) {
	s := setupServer(t, nil)

	res, err := s.handleReindex(context.Background(), callRequest("reindex", nil))
	require.NoError(t, err)

	var out map[string]interface{}
	resultJSON(t, res, &out)
	assert.Equal(t, float64(0), out["failed"])
	assert.NotContains(t, out, "errors")
}

func TestToolError(t *testing.T) {
	s := setupServer(t, nil)

	err := s.toolError("reindex", indexer.ErrReindexInProgress)
	requireMCPError(t, err, ErrorCodeIndexingInProgress)

	err = s.toolError("search", &types.QueryExecutionError{Op: "search", Err: errors.New("disk I/O error")})
	mcpErr := requireMCPError(t, err, ErrorCodeInternalError)
	assert.NotContains(t, mcpErr.Message, "disk")

	err = s.toolError("status", errors.New("boom"))
	mcpErr = requireMCPError(t, err, ErrorCodeInternalError)
	assert.Equal(t, "status failed", mcpErr.Message)
}
