package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

// WorkspaceRegistry lists the searchable internal workspaces.
type WorkspaceRegistry interface {
	ListWorkspaces(ctx context.Context) ([]domain.WorkspaceDescriptor, error)
	UpsertWorkspace(ctx context.Context, ws domain.WorkspaceDescriptor) error
}

// WorkspaceSearcher runs one retrieval call against one workspace index.
// SearchLexical is the degrade path when no query vector is available.
type WorkspaceSearcher interface {
	SearchWorkspace(ctx context.Context, slug string, queryVector []float32, limit int) ([]domain.InternalResult, error)
	SearchLexical(ctx context.Context, slug string, queryText string, limit int) ([]domain.InternalResult, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QualityScorer judges how well a result set answers a query.
type QualityScorer interface {
	Score(ctx context.Context, query domain.Query, rs domain.ResultSet) (domain.QualityAssessment, error)
}

// ExternalQueryGenerator rewrites a query for external web search.
type ExternalQueryGenerator interface {
	GenerateExternalQuery(ctx context.Context, query domain.Query, topics []string) (string, error)
}

// ExternalSearchProvider is one web search backend behind its own breaker.
type ExternalSearchProvider interface {
	ID() string
	Search(ctx context.Context, query string, maxResults int) ([]domain.ExternalResult, error)
}

// EnrichmentDispatcher hands accepted external results to ingestion without
// blocking the search path.
type EnrichmentDispatcher interface {
	DispatchAsync(candidates []domain.EnrichmentCandidate)
}

// IngestionQueue transports enrichment candidates to the ingestion worker.
type IngestionQueue interface {
	PublishEnrichmentCandidate(ctx context.Context, candidate domain.EnrichmentCandidate) error
	SubscribeEnrichmentCandidates(ctx context.Context, handler func(context.Context, domain.EnrichmentCandidate) error) error
}

// ResultCache stores serialized responses keyed by query fingerprint.
// Get returns ErrCacheMiss-kinded errors for absent keys.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.SearchResponse, error)
	Put(ctx context.Context, fingerprint string, resp domain.SearchResponse, ttl time.Duration) error
}

// TopicGraph records enrichment events and answers topic adjacency lookups.
type TopicGraph interface {
	RecordEnrichment(ctx context.Context, fingerprint, queryText string, topics []string, providerIDs []string) error
	RelatedTopics(ctx context.Context, topic string, limit int) ([]string, error)
}

// ContentFetcher retrieves one external page for ingestion.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (domain.FetchedContent, error)
}

// TextExtractor extracts plain text from fetched content.
type TextExtractor interface {
	Extract(ctx context.Context, content domain.FetchedContent) (string, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// ContentIndexer writes extracted external content into a workspace index.
type ContentIndexer interface {
	IndexContent(ctx context.Context, workspace string, content domain.IngestedContent, chunks []string, vectors [][]float32) error
}

// ObjectStorage archives raw fetched bodies for audit and reprocessing.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
