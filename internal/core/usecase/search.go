package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// PipelineLimits bounds every stage of one search. Zero values fall back to
// the defaults below.
type PipelineLimits struct {
	RequestTimeout       time.Duration
	RetrievalTimeout     time.Duration
	WorkspaceTimeout     time.Duration
	WorkspaceConcurrency int
	EvaluateTimeout      time.Duration
	QualityThreshold     float64
	MaxRefinements       int
	EnrichmentTimeout    time.Duration
	ProviderTimeout      time.Duration
	QueryGenTimeout      time.Duration
	MaxExternalResults   int
	DefaultLimit         int
	CacheTTL             time.Duration
	IngestWorkspace      string
}

func (l PipelineLimits) withDefaults() PipelineLimits {
	if l.RequestTimeout <= 0 {
		l.RequestTimeout = 25 * time.Second
	}
	if l.RetrievalTimeout <= 0 {
		l.RetrievalTimeout = 30 * time.Second
	}
	if l.WorkspaceTimeout <= 0 {
		l.WorkspaceTimeout = 2 * time.Second
	}
	if l.WorkspaceConcurrency <= 0 {
		l.WorkspaceConcurrency = 5
	}
	if l.EvaluateTimeout <= 0 {
		l.EvaluateTimeout = 8 * time.Second
	}
	if l.QualityThreshold <= 0 {
		l.QualityThreshold = 0.6
	}
	if l.MaxRefinements <= 0 {
		l.MaxRefinements = 1
	}
	if l.EnrichmentTimeout <= 0 {
		l.EnrichmentTimeout = 15 * time.Second
	}
	if l.ProviderTimeout <= 0 {
		l.ProviderTimeout = 6 * time.Second
	}
	if l.QueryGenTimeout <= 0 {
		l.QueryGenTimeout = 5 * time.Second
	}
	if l.MaxExternalResults <= 0 {
		l.MaxExternalResults = 10
	}
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = 10
	}
	if l.CacheTTL <= 0 {
		l.CacheTTL = 5 * time.Minute
	}
	if l.IngestWorkspace == "" {
		l.IngestWorkspace = "web-knowledge"
	}
	return l
}

// SearchUseCase orchestrates the pipeline: normalize, retrieve, evaluate,
// optionally refine once, optionally enrich externally, assemble. Everything
// after normalization fails into data: the only errors a caller ever sees
// are validation errors and a dead inbound context.
type SearchUseCase struct {
	registry   ports.WorkspaceRegistry
	cache      ports.ResultCache
	retrieval  *retrievalStage
	evaluator  *evaluatorStage
	enrichment *enrichmentStage
	limits     PipelineLimits
	logger     *slog.Logger
}

func NewSearchUseCase(
	registry ports.WorkspaceRegistry,
	searcher ports.WorkspaceSearcher,
	embedder ports.Embedder,
	scorer ports.QualityScorer,
	generator ports.ExternalQueryGenerator,
	providers []ports.ExternalSearchProvider,
	dispatcher ports.EnrichmentDispatcher,
	cache ports.ResultCache,
	topics ports.TopicGraph,
	limits PipelineLimits,
	logger *slog.Logger,
) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	limits = limits.withDefaults()
	return &SearchUseCase{
		registry: registry,
		cache:    cache,
		retrieval: &retrievalStage{
			searcher: searcher,
			embedder: embedder,
			limits:   limits,
			logger:   logger,
		},
		evaluator: &evaluatorStage{
			scorer: scorer,
			limits: limits,
			logger: logger,
		},
		enrichment: &enrichmentStage{
			generator:  generator,
			providers:  providers,
			dispatcher: dispatcher,
			topics:     topics,
			limits:     limits,
			logger:     logger,
		},
		limits: limits,
		logger: logger,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	q, err := normalizeQuery(req, uc.limits.DefaultLimit)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTimeout, "search", err)
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, uc.limits.RequestTimeout)
	defer cancel()

	fingerprint := q.Fingerprint()
	if cached := uc.cachedResponse(reqCtx, fingerprint); cached != nil {
		uc.logger.Info("search_cache_hit", "fingerprint", fingerprint)
		return cached, nil
	}

	workspaces := uc.loadWorkspaces(reqCtx)

	rs := uc.retrieval.run(reqCtx, q, workspaces)
	assessment := uc.evaluator.run(reqCtx, q, rs)
	decision := decideEnrichment(q, assessment, 0, uc.limits.MaxRefinements)

	if decision.Action == domain.EnrichmentRefineInternal {
		refined := q.WithText(decision.RefinedQuery)
		uc.logger.Info("retrieval_refined", "refined_query", decision.RefinedQuery)
		rs = uc.retrieval.run(reqCtx, refined, workspaces)
		assessment = uc.evaluator.run(reqCtx, refined, rs)
		decision = decideEnrichment(q, assessment, 1, uc.limits.MaxRefinements)
	}

	var external []domain.ExternalResult
	enrichmentTriggered := false
	if decision.Action == domain.EnrichmentGoExternal {
		enrichmentTriggered = true
		external = uc.enrichment.run(reqCtx, q, decision)
	}

	resp := assembleResponse(q, rs, external, assessment, time.Since(start), enrichmentTriggered)
	uc.storeResponse(reqCtx, fingerprint, resp)

	uc.logger.Info("search_completed",
		"fingerprint", fingerprint,
		"results", len(resp.Results),
		"quality_score", resp.QualityScore,
		"failed_workspaces", resp.FailedWorkspaces,
		"enrichment_triggered", resp.EnrichmentTriggered,
		"external_search_used", resp.ExternalSearchUsed,
		"duration_ms", resp.ExecutionMS,
	)
	return &resp, nil
}

func (uc *SearchUseCase) ListWorkspaces(ctx context.Context) ([]domain.WorkspaceDescriptor, error) {
	return uc.registry.ListWorkspaces(ctx)
}

// cachedResponse returns a prior response for this fingerprint, or nil. Cache
// trouble is logged and treated as a miss.
func (uc *SearchUseCase) cachedResponse(ctx context.Context, fingerprint string) *domain.SearchResponse {
	if uc.cache == nil {
		return nil
	}
	cached, err := uc.cache.Get(ctx, fingerprint)
	if err != nil {
		if !domain.IsKind(err, domain.ErrCacheMiss) {
			uc.logger.Warn("result_cache_get_failed", "error", err)
		}
		return nil
	}
	if cached == nil {
		return nil
	}
	hit := *cached
	hit.CacheHit = true
	return &hit
}

func (uc *SearchUseCase) storeResponse(ctx context.Context, fingerprint string, resp domain.SearchResponse) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Put(ctx, fingerprint, resp, uc.limits.CacheTTL); err != nil {
		uc.logger.Warn("result_cache_put_failed", "error", err)
	}
}

// loadWorkspaces degrades a registry outage to zero workspaces; the pipeline
// continues and the evaluator decides what to do with an empty retrieval.
func (uc *SearchUseCase) loadWorkspaces(ctx context.Context) []domain.WorkspaceDescriptor {
	workspaces, err := uc.registry.ListWorkspaces(ctx)
	if err != nil {
		uc.logger.Warn("workspace_registry_unavailable", "error", err)
		return nil
	}
	return workspaces
}
