package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// IngestExternalUseCase turns one accepted enrichment candidate into indexed
// internal content: fetch, archive, extract, chunk, embed, index. Archive,
// workspace registration, and topic recording are best-effort; everything
// else fails the candidate.
type IngestExternalUseCase struct {
	fetcher   ports.ContentFetcher
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	indexer   ports.ContentIndexer
	registry  ports.WorkspaceRegistry
	topics    ports.TopicGraph
	logger    *slog.Logger
}

func NewIngestExternalUseCase(
	fetcher ports.ContentFetcher,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	indexer ports.ContentIndexer,
	registry ports.WorkspaceRegistry,
	topics ports.TopicGraph,
	logger *slog.Logger,
) *IngestExternalUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestExternalUseCase{
		fetcher:   fetcher,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		indexer:   indexer,
		registry:  registry,
		topics:    topics,
		logger:    logger,
	}
}

// Process ingests one candidate and returns the number of indexed chunks.
func (uc *IngestExternalUseCase) Process(ctx context.Context, candidate domain.EnrichmentCandidate) (int, error) {
	content, err := uc.fetchContent(ctx, candidate)
	if err != nil {
		return 0, err
	}
	uc.archiveRaw(ctx, candidate, content)

	text, err := uc.extractText(ctx, content)
	if err != nil {
		return 0, err
	}

	chunks, err := uc.chunk(text)
	if err != nil {
		return 0, err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	uc.ensureWorkspace(ctx, candidate)

	ingested := domain.IngestedContent{
		ContentID:  candidate.ID,
		Title:      candidate.Title,
		URL:        candidate.URL,
		ProviderID: candidate.ProviderID,
		Text:       text,
	}
	if err := uc.indexer.IndexContent(ctx, candidate.Workspace, ingested, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index content: %w", err)
	}

	uc.recordTopics(candidate)
	return len(chunks), nil
}

func (uc *IngestExternalUseCase) fetchContent(ctx context.Context, candidate domain.EnrichmentCandidate) (domain.FetchedContent, error) {
	content, err := uc.fetcher.Fetch(ctx, candidate.URL)
	if err != nil {
		return domain.FetchedContent{}, fmt.Errorf("fetch candidate url: %w", err)
	}
	if len(content.Body) == 0 {
		return domain.FetchedContent{}, domain.WrapError(domain.ErrInvalidInput, "fetch candidate url", errors.New("empty body"))
	}
	return content, nil
}

func (uc *IngestExternalUseCase) archiveRaw(ctx context.Context, candidate domain.EnrichmentCandidate, content domain.FetchedContent) {
	if uc.storage == nil {
		return
	}
	key := archiveKey(candidate)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(content.Body)); err != nil {
		uc.logger.Warn("raw_archive_failed", "candidate_id", candidate.ID, "key", key, "error", err)
	}
}

func (uc *IngestExternalUseCase) extractText(ctx context.Context, content domain.FetchedContent) (string, error) {
	text, err := uc.extractor.Extract(ctx, content)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *IngestExternalUseCase) chunk(text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk content", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *IngestExternalUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// ensureWorkspace keeps the target workspace visible to retrieval. Failure is
// logged, not fatal: the next candidate retries the upsert.
func (uc *IngestExternalUseCase) ensureWorkspace(ctx context.Context, candidate domain.EnrichmentCandidate) {
	if uc.registry == nil {
		return
	}
	ws := domain.WorkspaceDescriptor{
		Slug: candidate.Workspace,
		Name: "External Web Knowledge",
	}
	if candidate.TechHint != "" {
		ws.TechTags = []string{candidate.TechHint}
	}
	if err := uc.registry.UpsertWorkspace(ctx, ws); err != nil {
		uc.logger.Warn("workspace_upsert_failed", "workspace", candidate.Workspace, "error", err)
	}
}

func (uc *IngestExternalUseCase) recordTopics(candidate domain.EnrichmentCandidate) {
	if uc.topics == nil || len(candidate.Topics) == 0 {
		return
	}
	go func() {
		recordCtx, cancel := context.WithTimeout(context.Background(), topicRecordTimeout)
		defer cancel()
		err := uc.topics.RecordEnrichment(recordCtx, candidate.Fingerprint, candidate.Title, candidate.Topics, []string{candidate.ProviderID})
		if err != nil {
			uc.logger.Warn("topic_graph_record_failed", "candidate_id", candidate.ID, "error", err)
		}
	}()
}

func archiveKey(candidate domain.EnrichmentCandidate) string {
	return fmt.Sprintf("%s/%s/%s.raw", candidate.ProviderID, candidate.AcceptedAt.Format("2006-01-02"), candidate.ID)
}
