package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// WorkspacesTool handles the list_workspaces MCP tool.
type WorkspacesTool struct {
	search ports.SearchService
}

func NewWorkspacesTool(search ports.SearchService) *WorkspacesTool {
	return &WorkspacesTool{search: search}
}

func (t *WorkspacesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_workspaces",
		mcp.WithDescription(
			"List the knowledge workspaces the gateway searches, with the technology "+
				"tags that route technology-hinted queries to them.",
		),
	)
}

func (t *WorkspacesTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaces, err := t.search.ListWorkspaces(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list workspaces failed: %v", err)), nil
	}
	if len(workspaces) == 0 {
		return mcp.NewToolResultText("No workspaces are registered yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d workspaces:\n\n", len(workspaces))
	for _, ws := range workspaces {
		fmt.Fprintf(&b, "- %s (%s)", ws.Slug, ws.Name)
		if len(ws.TechTags) > 0 {
			fmt.Fprintf(&b, " tags: %s", strings.Join(ws.TechTags, ", "))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}
