package usecase

import (
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

// assembleResponse builds the final response: internal results first, already
// ranked by relevance, external results appended in aggregation order. It is
// pure; identical inputs always produce identical responses.
func assembleResponse(
	q domain.Query,
	rs domain.ResultSet,
	external []domain.ExternalResult,
	assessment domain.QualityAssessment,
	elapsed time.Duration,
	enrichmentTriggered bool,
) domain.SearchResponse {
	merged := make([]domain.SearchResult, 0, len(rs.Results)+len(external))
	for _, r := range rs.Results {
		merged = append(merged, domain.SearchResult{
			ContentID: r.ContentID,
			Title:     r.Title,
			Snippet:   r.Snippet,
			Source:    r.Workspace,
			Origin:    domain.OriginInternal,
			Score:     r.Score,
		})
	}
	for _, r := range external {
		merged = append(merged, domain.SearchResult{
			Title:   r.Title,
			Snippet: r.Snippet,
			Source:  r.ProviderID,
			Origin:  domain.OriginExternal,
			URL:     r.URL,
		})
	}

	return domain.SearchResponse{
		Results:             applyPagination(merged, q.Offset, q.Limit),
		TotalCount:          len(merged),
		ExecutionMS:         elapsed.Milliseconds(),
		QualityScore:        assessment.Score,
		FailedWorkspaces:    rs.FailedWorkspaces,
		CacheHit:            false,
		EnrichmentTriggered: enrichmentTriggered,
		ExternalSearchUsed:  len(external) > 0,
	}
}

func applyPagination(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
