package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// SearchTool handles the knowledge_search MCP tool.
type SearchTool struct {
	search ports.SearchService
}

func NewSearchTool(search ports.SearchService) *SearchTool {
	return &SearchTool{search: search}
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_search",
		mcp.WithDescription(
			"Search the internal knowledge base. When internal coverage is weak the "+
				"gateway consults live web search providers and queues the accepted pages "+
				"for background ingestion, so later searches on the topic improve.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for, natural language or keywords"),
		),
		mcp.WithString("technology",
			mcp.Description("Technology hint such as go, python or postgres; narrows the searched workspaces"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default 10, max 100)"),
		),
		mcp.WithString("providers",
			mcp.Description("Comma-separated external provider ids to restrict enrichment to, e.g. brave,searxng"),
		),
		mcp.WithBoolean("force_external",
			mcp.Description("Consult external web search even when internal results look sufficient"),
		),
		mcp.WithString("session_id",
			mcp.Description("Caller session identifier, recorded with enriched content"),
		),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	searchReq := domain.SearchRequest{
		Text:          query,
		TechHint:      req.GetString("technology", ""),
		Limit:         req.GetInt("limit", 0),
		ProviderIDs:   splitProviders(req.GetString("providers", "")),
		ForceExternal: req.GetBool("force_external", false),
		SessionID:     req.GetString("session_id", ""),
	}

	resp, err := t.search.Search(ctx, searchReq)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return mcp.NewToolResultError(verr.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatSearchResponse(resp)), nil
}

func splitProviders(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func formatSearchResponse(resp *domain.SearchResponse) string {
	if len(resp.Results) == 0 {
		msg := "No results found."
		if resp.EnrichmentTriggered {
			msg += " Background enrichment was triggered; retry this search in a little while."
		}
		return msg
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results (quality %.2f", resp.TotalCount, resp.QualityScore)
	if resp.CacheHit {
		b.WriteString(", cached")
	}
	if resp.ExternalSearchUsed {
		b.WriteString(", includes live web results")
	}
	b.WriteString("):\n\n")

	for i, r := range resp.Results {
		fmt.Fprintf(&b, "[%d] %s (%s, score %.2f)\n", i+1, r.Title, r.Source, r.Score)
		if r.URL != "" {
			fmt.Fprintf(&b, "    %s\n", r.URL)
		}
		fmt.Fprintf(&b, "    %s\n\n", truncate(r.Snippet, 300))
	}

	if resp.EnrichmentTriggered {
		b.WriteString("New external content is being ingested in the background; this topic will have better internal coverage soon.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
