package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/analytics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/indexer"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/logger"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "cmssearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	searcher  *searcher.Searcher
	analytics *analytics.Service
	indexer   *indexer.Indexer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance over already constructed services.
// The caller owns the services and closes them after Serve returns.
func NewServer(search *searcher.Searcher, analyticsSvc *analytics.Service, idx *indexer.Indexer, log *zap.Logger) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		searcher:  search,
		analytics: analyticsSvc,
		indexer:   idx,
		logger:    logger.OrNop(log).Named("mcp"),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(_ context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchContentTool(), s.handleSearchContent)
	s.mcp.AddTool(getFacetsTool(), s.handleGetFacets)
	s.mcp.AddTool(suggestTool(), s.handleSuggest)
	s.mcp.AddTool(getAnalyticsTool(), s.handleGetAnalytics)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(reindexTool(), s.handleReindex)
}
