package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// filtersSchema describes the shared filter object
func filtersSchema() map[string]interface{} {
	stringList := func(description string) map[string]interface{} {
		return map[string]interface{}{
			"type":        "array",
			"description": description,
			"items":       map[string]interface{}{"type": "string"},
		}
	}
	return map[string]interface{}{
		"type":        "object",
		"description": "Optional filters; values within one dimension are OR-ed, dimensions are AND-ed",
		"properties": map[string]interface{}{
			"category": stringList("Category slugs"),
			"author":   stringList("Author ids"),
			"status": map[string]interface{}{
				"type":        "array",
				"description": "Entry statuses (only effective with include_unpublished)",
				"items": map[string]interface{}{
					"type": "string",
					"enum": []string{"published", "draft", "pending", "private", "archived"},
				},
			},
			"source_type": map[string]interface{}{
				"type":        "array",
				"description": "Source entity kinds",
				"items": map[string]interface{}{
					"type": "string",
					"enum": []string{"content", "term", "media"},
				},
			},
			"date_from": map[string]interface{}{
				"type":        "string",
				"description": "Earliest publication time (RFC 3339)",
			},
			"date_to": map[string]interface{}{
				"type":        "string",
				"description": "Latest publication time (RFC 3339)",
			},
			"metadata": map[string]interface{}{
				"type":                 "object",
				"description":          "Custom metadata filters: key to list of accepted values",
				"additionalProperties": stringList("Accepted values"),
			},
		},
	}
}

func modeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Match semantics: natural (any term), boolean (+required -excluded \"phrase\" prefix*), queryExpansion (stems and synonyms)",
		"enum":        []string{"natural", "boolean", "queryExpansion"},
		"default":     "natural",
	}
}

// searchContentTool returns the tool definition for search_content
func searchContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_content",
		Description: "Full-text search over CMS content, terms and media ranked by composite relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search text; empty lists entries by date",
				},
				"filters": filtersSchema(),
				"mode":    modeSchema(),
				"sort": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"relevance", "date", "title", "category"},
					"default": "relevance",
				},
				"direction": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"asc", "desc"},
					"default": "desc",
				},
				"page": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"default": 1,
				},
				"per_page": map[string]interface{}{
					"type":        "integer",
					"description": "Results per page (capped by configuration)",
					"minimum":     1,
					"default":     20,
				},
				"include_unpublished": map[string]interface{}{
					"type":        "boolean",
					"description": "Include drafts, private and scheduled entries",
					"default":     false,
				},
				"facets": map[string]interface{}{
					"type":        "boolean",
					"description": "Attach facet counts to the response",
					"default":     false,
				},
			},
		},
	}
}

// getFacetsTool returns the tool definition for get_facets
func getFacetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_facets",
		Description: "Count matching entries per category, status, author, source type and configured metadata key",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query":   map[string]interface{}{"type": "string"},
				"filters": filtersSchema(),
				"mode":    modeSchema(),
				"include_unpublished": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
			},
		},
	}
}

// suggestTool returns the tool definition for suggest
func suggestTool() mcp.Tool {
	return mcp.Tool{
		Name:        "suggest",
		Description: "Autocomplete a partial query from titles and keywords of visible entries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"partial": map[string]interface{}{
					"type":        "string",
					"description": "Partial query text",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of suggestions (capped by configuration)",
					"minimum":     1,
				},
			},
			Required: []string{"partial"},
		},
	}
}

// getAnalyticsTool returns the tool definition for get_analytics
func getAnalyticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_analytics",
		Description: "Report search volume, latency, popular and zero-result queries and daily trends",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"date_from": map[string]interface{}{
					"type":        "string",
					"description": "Range start (RFC 3339); defaults to 30 days before date_to",
				},
				"date_to": map[string]interface{}{
					"type":        "string",
					"description": "Range end (RFC 3339); defaults to now",
				},
				"limit": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": 100,
					"default": 10,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether search is enabled and how many entries are indexed",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// reindexTool returns the tool definition for reindex
func reindexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex",
		Description: "Rebuild the index from every configured source and prune stale entries",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
