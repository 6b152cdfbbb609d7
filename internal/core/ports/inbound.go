package ports

import (
	"context"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

// SearchService is the inbound contract for the full search pipeline.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
	ListWorkspaces(ctx context.Context) ([]domain.WorkspaceDescriptor, error)
}

// CandidateProcessor is the inbound contract for asynchronous ingestion of
// accepted external content. Process reports how many chunks it indexed.
type CandidateProcessor interface {
	Process(ctx context.Context, candidate domain.EnrichmentCandidate) (int, error)
}
