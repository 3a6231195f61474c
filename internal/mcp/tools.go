package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/analytics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/indexer"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/searcher"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another reindex is already running
	ErrorCodeFeatureDisabled    = -32005 // Feature switched off by configuration
)

type searchArgs struct {
	Query              string           `json:"query"`
	Filters            searcher.Filters `json:"filters"`
	Mode               string           `json:"mode"`
	Sort               string           `json:"sort"`
	Direction          string           `json:"direction"`
	Page               int              `json:"page"`
	PerPage            int              `json:"per_page"`
	IncludeUnpublished bool             `json:"include_unpublished"`
	Facets             bool             `json:"facets"`
}

type suggestArgs struct {
	Partial string `json:"partial"`
	Limit   int    `json:"limit"`
}

type analyticsArgs struct {
	DateFrom *time.Time `json:"date_from"`
	DateTo   *time.Time `json:"date_to"`
	Limit    int        `json:"limit"`
}

// handleSearchContent handles the search_content tool invocation
func (s *Server) handleSearchContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:              args.Query,
		Filters:            args.Filters,
		Page:               args.Page,
		PerPage:            args.PerPage,
		Mode:               searcher.SearchMode(args.Mode),
		Sort:               searcher.SortField(args.Sort),
		Direction:          searcher.Direction(args.Direction),
		IncludeUnpublished: args.IncludeUnpublished,
		WithFacets:         args.Facets,
		UseCache:           true,
		Caller:             searcher.Caller{UserAgent: ServerName + "/mcp"},
	})
	if err != nil {
		return nil, s.toolError("search", err)
	}
	return mcp.NewToolResultText(formatJSON(resp.Wire())), nil
}

// handleGetFacets handles the get_facets tool invocation
func (s *Server) handleGetFacets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	facets, err := s.searcher.Facets(ctx, searcher.FacetRequest{
		Query:              args.Query,
		Filters:            args.Filters,
		Mode:               searcher.SearchMode(args.Mode),
		IncludeUnpublished: args.IncludeUnpublished,
	})
	if err != nil {
		return nil, s.toolError("facets", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"facets": facets})), nil
}

// handleSuggest handles the suggest tool invocation
func (s *Server) handleSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args suggestArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	suggestions, err := s.searcher.Suggest(ctx, args.Partial, args.Limit)
	if err != nil {
		return nil, s.toolError("suggest", err)
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"suggestions": suggestions})), nil
}

// handleGetAnalytics handles the get_analytics tool invocation
func (s *Server) handleGetAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args analyticsArgs
	if err := decodeArgs(request, &args); err != nil {
		return nil, err
	}

	var from, to time.Time
	if args.DateFrom != nil {
		from = *args.DateFrom
	}
	if args.DateTo != nil {
		to = *args.DateTo
	}

	report, err := s.analytics.Analytics(ctx, from, to, analytics.ReportOptions{Limit: args.Limit})
	if err != nil {
		return nil, s.toolError("analytics", err)
	}
	return mcp.NewToolResultText(formatJSON(report)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.searcher.Status(ctx)
	if err != nil {
		return nil, s.toolError("status", err)
	}
	return mcp.NewToolResultText(formatJSON(status)), nil
}

// handleReindex handles the reindex tool invocation
func (s *Server) handleReindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.ReindexAll(ctx)
	if err != nil {
		return nil, s.toolError("reindex", err)
	}

	response := map[string]interface{}{
		"indexed":     stats.Indexed,
		"unchanged":   stats.Unchanged,
		"failed":      stats.Failed,
		"removed":     stats.Removed,
		"batches":     stats.Batches,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if len(stats.Errors) > 0 {
		// Include first few errors
		errorCount := len(stats.Errors)
		if errorCount > 5 {
			response["errors"] = stats.Errors[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.Errors
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toolError maps a domain error onto an MCP error. Internal details are logged, never returned.
func (s *Server) toolError(op string, err error) error {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve):
		return newMCPError(ErrorCodeInvalidParams, ve.Error(), map[string]interface{}{
			"param":  ve.Field,
			"reason": ve.Message,
		})
	case errors.Is(err, types.ErrFeatureDisabled):
		return newMCPError(ErrorCodeFeatureDisabled, err.Error(), map[string]interface{}{"enabled": false})
	case errors.Is(err, indexer.ErrReindexInProgress):
		return newMCPError(ErrorCodeIndexingInProgress, err.Error(), nil)
	case errors.Is(err, types.ErrQueryExecution):
		return newMCPError(ErrorCodeInternalError, types.ErrQueryExecution.Error(), nil)
	default:
		s.logger.Error("tool failed", zap.String("op", op), zap.Error(err))
		return newMCPError(ErrorCodeInternalError, op+" failed", nil)
	}
}

// decodeArgs maps the loosely typed tool arguments onto a typed struct
func decodeArgs(request mcp.CallToolRequest, v interface{}) error {
	if request.Params.Arguments == nil {
		return nil
	}
	data, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newMCPError(ErrorCodeInvalidParams, "invalid arguments", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}
