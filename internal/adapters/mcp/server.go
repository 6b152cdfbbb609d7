// Package mcpadapter exposes the search pipeline as MCP tools over stdio.
package mcpadapter

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

const instructions = `knowledge-gateway searches a curated internal knowledge base first and falls
back to live web search when internal coverage is weak. Accepted web results
are ingested in the background, so repeated searches on the same topic get
better over time. Use knowledge_search for questions and list_workspaces to
see which knowledge areas exist.`

// New builds the MCP server with the search tools registered.
func New(search ports.SearchService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"knowledge-gateway",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	searchTool := NewSearchTool(search)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	workspacesTool := NewWorkspacesTool(search)
	s.AddTool(workspacesTool.Definition(), workspacesTool.Handle)

	return s
}
