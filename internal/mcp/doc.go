// Package mcp implements the Model Context Protocol (MCP) server for the CMS search service.
//
// The server exposes the search subsystem to agent clients as tools:
//   - search_content: ranked full-text search with filters, sorting and optional facets
//   - get_facets: per-dimension counts for a query and filter set
//   - suggest: autocomplete from titles and keywords
//   - get_analytics: search volume, popular and zero-result queries, daily trends
//   - get_status: enablement and index counts
//   - reindex: rebuild the index from the configured sources
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only, so logs go to stderr.
//
// # Basic Usage
//
//	cmssearch -mcp
//
// # Tool: search_content
//
//	Request:
//	{
//	  "name": "search_content",
//	  "arguments": {
//	    "query": "release notes",
//	    "filters": {"category": ["news"], "metadata": {"color": ["red"]}},
//	    "mode": "natural",
//	    "sort": "relevance",
//	    "per_page": 10
//	  }
//	}
//
//	Response (text content):
//	{
//	  "items": [{"id": 1, "source_type": "content", "title": "Release notes", "score": 0.61, ...}],
//	  "total": 1,
//	  "page": 1,
//	  "per_page": 10,
//	  "took_ms": 2,
//	  "cached": false
//	}
//
// The MCP surface is a trusted local transport, so include_unpublished is honored
// without further authorization.
//
// # Error Handling
//
// Errors are returned as MCPError values:
//
//	-32602  invalid parameters, including query and filter validation failures
//	-32005  the feature is disabled by configuration
//	-32002  a reindex is already running
//	-32603  internal error; details are logged server-side only
package mcp
