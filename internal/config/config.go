package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort  string
	LogLevel string

	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
	QueueTimeoutMS int

	// PostgresDSN selects the Postgres workspace registry; when empty the
	// registry is loaded from WorkspacesFile instead.
	PostgresDSN    string
	WorkspacesFile string
	ProvidersFile  string

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	QdrantURL              string
	QdrantCollectionPrefix string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	// Neo4jURI enables the topic graph; empty leaves it out of the pipeline.
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	StoragePath string

	ChunkSize    int
	ChunkOverlap int

	SearchDefaultLimit   int
	QualityThreshold     float64
	WorkspaceConcurrency int
	WorkspaceTimeoutMS   int
	RetrievalBudgetMS    int
	EnrichmentBudgetMS   int
	RequestTimeoutMS     int
	ExternalResultCap    int
	IngestWorkspace      string

	DispatchPoolSize int
	WorkerPoolSize   int

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		APIKey:         mustEnv("API_KEY", ""),
		RateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		RateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 0),
		MaxConcurrent:  mustEnvInt("API_MAX_CONCURRENT", 0),
		QueueTimeoutMS: mustEnvInt("API_QUEUE_TIMEOUT_MS", 2000),

		PostgresDSN:    mustEnv("POSTGRES_DSN", ""),
		WorkspacesFile: mustEnv("WORKSPACES_FILE", "./configs/workspaces.yaml"),
		ProvidersFile:  mustEnv("PROVIDERS_FILE", "./configs/providers.yaml"),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "search.enrichment"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		QdrantURL:              mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollectionPrefix: mustEnv("QDRANT_COLLECTION_PREFIX", "kgw_"),

		RedisAddr:       mustEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   mustEnv("REDIS_PASSWORD", ""),
		RedisDB:         mustEnvInt("REDIS_DB", 0),
		CacheTTLSeconds: mustEnvInt("CACHE_TTL_SECONDS", 300),

		Neo4jURI:      mustEnv("NEO4J_URI", ""),
		Neo4jUser:     mustEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: mustEnv("NEO4J_PASSWORD", ""),

		StoragePath: mustEnv("STORAGE_PATH", "./data/archive"),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 900),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 150),

		SearchDefaultLimit:   mustEnvInt("SEARCH_DEFAULT_LIMIT", 10),
		QualityThreshold:     mustEnvFloat("SEARCH_QUALITY_THRESHOLD", 0.6),
		WorkspaceConcurrency: mustEnvInt("SEARCH_WORKSPACE_CONCURRENCY", 5),
		WorkspaceTimeoutMS:   mustEnvInt("SEARCH_WORKSPACE_TIMEOUT_MS", 2000),
		RetrievalBudgetMS:    mustEnvInt("SEARCH_RETRIEVAL_BUDGET_MS", 30000),
		EnrichmentBudgetMS:   mustEnvInt("SEARCH_ENRICHMENT_BUDGET_MS", 15000),
		RequestTimeoutMS:     mustEnvInt("SEARCH_REQUEST_TIMEOUT_MS", 25000),
		ExternalResultCap:    mustEnvInt("SEARCH_EXTERNAL_RESULT_CAP", 10),
		IngestWorkspace:      mustEnv("INGEST_WORKSPACE", "web-knowledge"),

		DispatchPoolSize: mustEnvInt("DISPATCH_POOL_SIZE", 8),
		WorkerPoolSize:   mustEnvInt("WORKER_POOL_SIZE", 4),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
