// ABOUTME: MCP tool handler implementations for bible-tools
// ABOUTME: Wraps the corpus service with tool-call argument handling
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cevr/bible-tools/internal/corpus"
)

// Searcher answers corpus queries and reports load liveness.
type Searcher interface {
	Search(ctx context.Context, query string) (corpus.SearchResult, error)
	Loading() bool
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	searcher Searcher
}

// SearchWritings handles the search_writings tool
func (h *Handlers) SearchWritings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	result, err := h.searcher.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	body, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("could not encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// CorpusStatus handles the corpus_status tool
func (h *Handlers) CorpusStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(map[string]bool{"loading": h.searcher.Loading()})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("could not encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
