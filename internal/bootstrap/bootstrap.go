// Package bootstrap wires configuration into runnable services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kirillkom/knowledge-gateway/internal/config"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
	"github.com/kirillkom/knowledge-gateway/internal/core/usecase"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/cache/redis"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/dispatch"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/extractor/sheettext"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/fetch/web"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/provider/websearch"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/registry/staticfile"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-gateway/internal/infrastructure/vector/qdrant"
)

// App holds the wired collaborators for one binary. Close releases them in
// reverse construction order.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Search    ports.SearchService
	Processor ports.CandidateProcessor
	Queue     *nats.Queue

	closeFns []func()
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// BuildSearch assembles the full search pipeline for the api and mcp
// binaries.
func BuildSearch(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	registry, err := buildRegistry(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	coreExec := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	providerExec := resilience.NewExecutor(resilience.ProviderConfig(), logger)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, coreExec)
	embedder := ollama.NewEmbedder(ollamaClient)
	scorer := ollama.NewScorer(ollamaClient)
	generator := ollama.NewQueryGenerator(ollamaClient)

	vector := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)

	providers, err := buildProviders(cfg, providerExec, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: coreExec,
		Logger:             logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init ingestion queue: %w", err)
	}
	app.Queue = queue
	app.onClose(queue.Close)

	dispatcher, err := dispatch.NewPoolDispatcher(queue, cfg.DispatchPoolSize, dispatch.WithLogger(logger))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init enrichment dispatcher: %w", err)
	}
	app.onClose(dispatcher.Release)

	cache, err := redis.New(redis.Config{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init result cache: %w", err)
	}
	app.onClose(cache.Close)

	topics, err := buildTopicGraph(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Search = usecase.NewSearchUseCase(
		registry,
		vector,
		embedder,
		scorer,
		generator,
		providers,
		dispatcher,
		cache,
		topics,
		pipelineLimits(cfg),
		logger,
	)
	return app, nil
}

// BuildWorker assembles the candidate processor and its queue subscription
// for the worker binary.
func BuildWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	registry, err := buildRegistry(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	coreExec := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, coreExec)
	embedder := ollama.NewEmbedder(ollamaClient)

	vector := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: coreExec,
		Logger:             logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init ingestion queue: %w", err)
	}
	app.Queue = queue
	app.onClose(queue.Close)

	topics, err := buildTopicGraph(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Processor = usecase.NewIngestExternalUseCase(
		web.NewFetcher(web.Config{}),
		storage,
		buildExtractors(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		vector,
		registry,
		topics,
		logger,
	)
	return app, nil
}

func buildRegistry(ctx context.Context, cfg config.Config, app *App) (ports.WorkspaceRegistry, error) {
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })

		registry := postgres.NewWorkspaceRegistry(db)
		if err := registry.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return registry, nil
	}

	registry, err := staticfile.New(cfg.WorkspacesFile)
	if err != nil {
		return nil, fmt.Errorf("load workspace file: %w", err)
	}
	return registry, nil
}

// buildProviders reads the provider declarations. A missing file only
// disables external search; the internal pipeline still runs.
func buildProviders(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) ([]ports.ExternalSearchProvider, error) {
	decls, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("providers_file_missing", "path", cfg.ProvidersFile)
			return nil, nil
		}
		return nil, fmt.Errorf("load providers: %w", err)
	}

	providers := make([]ports.ExternalSearchProvider, 0, len(decls))
	for _, decl := range decls {
		switch decl.Kind {
		case "brave":
			providers = append(providers, websearch.NewBrave(decl.ID, decl.BaseURL, decl.APIKey(), executor))
		case "searxng":
			providers = append(providers, websearch.NewSearXNG(decl.ID, decl.BaseURL, executor))
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", decl.ID, decl.Kind)
		}
	}
	return providers, nil
}

func buildTopicGraph(ctx context.Context, cfg config.Config, app *App) (ports.TopicGraph, error) {
	if cfg.Neo4jURI == "" {
		return nil, nil
	}
	graph, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return nil, fmt.Errorf("connect topic graph: %w", err)
	}
	app.onClose(func() { _ = graph.Close(context.Background()) })
	return graph, nil
}

func buildExtractors() *extractor.Registry {
	registry := extractor.NewRegistry(plaintext.NewExtractor())
	registry.Register("text/html", htmltext.NewExtractor())
	registry.Register("application/xhtml+xml", htmltext.NewExtractor())
	registry.Register("application/pdf", pdftext.NewExtractor())
	registry.Register("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", sheettext.NewExtractor())
	return registry
}

func pipelineLimits(cfg config.Config) usecase.PipelineLimits {
	return usecase.PipelineLimits{
		RequestTimeout:       time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		RetrievalTimeout:     time.Duration(cfg.RetrievalBudgetMS) * time.Millisecond,
		WorkspaceTimeout:     time.Duration(cfg.WorkspaceTimeoutMS) * time.Millisecond,
		WorkspaceConcurrency: cfg.WorkspaceConcurrency,
		QualityThreshold:     cfg.QualityThreshold,
		EnrichmentTimeout:    time.Duration(cfg.EnrichmentBudgetMS) * time.Millisecond,
		MaxExternalResults:   cfg.ExternalResultCap,
		DefaultLimit:         cfg.SearchDefaultLimit,
		CacheTTL:             time.Duration(cfg.CacheTTLSeconds) * time.Second,
		IngestWorkspace:      cfg.IngestWorkspace,
	}
}
