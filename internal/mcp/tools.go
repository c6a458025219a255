// ABOUTME: MCP tool definitions and registration for bible-tools
// ABOUTME: Exposes corpus search and load status as agent tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, searcher Searcher) *Handlers {
	handlers := &Handlers{searcher: searcher}

	server.AddTool(mcp.Tool{
		Name:        "search_writings",
		Description: "Search the EGW and Bible corpora for passages relevant to a query. Returns ranked passages with citation labels.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchWritings)

	server.AddTool(mcp.Tool{
		Name:        "corpus_status",
		Description: "Report whether the embedding corpora are still loading.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.CorpusStatus)

	return handlers
}
