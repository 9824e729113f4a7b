// Package ragconfig loads the core's configuration from YAML, following
// the same load-and-log style as the teacher's internal/config package
// (pterm status lines). Defaults for chunk_size, chunk_overlap,
// num_workers, max_concurrent_graph and recency_decay_days are announced
// with a pterm line; the other defaults are applied without one.
package ragconfig

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// VectorStoreConfig configures the Qdrant-backed vector store.
type VectorStoreConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls,omitempty"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric,omitempty"` // cosine (default), l2, ip, manhattan
}

// GraphStoreConfig configures the Neo4j-backed graph store.
type GraphStoreConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database,omitempty"`
	// EntityEmbeddingDimensions sizes the cosine vector index used by dedup.
	EntityEmbeddingDimensions int `yaml:"entity_embedding_dimensions,omitempty"`
	MaxConnectionPoolSize     int `yaml:"max_connection_pool_size,omitempty"`
}

// DocStoreConfig configures the Postgres-backed document-metadata store.
type DocStoreConfig struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"max_conns,omitempty"`
	MaxConnLifetime string `yaml:"max_conn_lifetime,omitempty"`
}

// RedisConfig configures the distributed lock, embedding cache, and
// transformation cache, all Redis-backed.
type RedisConfig struct {
	Addr               string `yaml:"addr"`
	Password           string `yaml:"password,omitempty"`
	DB                 int    `yaml:"db,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	TLS                bool   `yaml:"tls,omitempty"`
}

// KafkaConfig configures the job-queue enqueue transport.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

// EmbeddingConfig configures the embedding endpoint client.
type EmbeddingConfig struct {
	Host       string `yaml:"host"`
	Path       string `yaml:"path,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	APIHeader  string `yaml:"api_header,omitempty"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_seconds,omitempty"`
}

// LLMConfig configures an LLM chat client (extraction, validation, time
// extraction, or synthesis — each section below names which model it uses).
type LLMConfig struct {
	Backend   string  `yaml:"backend"` // "anthropic" or "openai"
	APIKey    string  `yaml:"api_key,omitempty"`
	BaseURL   string  `yaml:"base_url,omitempty"`
	Model     string  `yaml:"model"`
	MaxTokens int64   `yaml:"max_tokens,omitempty"`
}

// RerankerConfig configures the cross-encoder reranker HTTP endpoint.
type RerankerConfig struct {
	Host    string `yaml:"host"`
	Enabled bool   `yaml:"enabled"`
}

// DedupConfig configures the entity deduplication engine (§4.5).
type DedupConfig struct {
	Enabled                bool    `yaml:"enabled"`
	IntervalMinutes        int     `yaml:"interval_minutes,omitempty"`
	SimilarityThreshold    float64 `yaml:"similarity_threshold,omitempty"`
	LevenshteinMaxDistance int     `yaml:"levenshtein_max_distance,omitempty"`
	HoursLookback          *int    `yaml:"hours_lookback,omitempty"`
	TopK                   int     `yaml:"top_k,omitempty"`
	BatchSize              int     `yaml:"batch_size,omitempty"`
	AlertThreshold         int     `yaml:"alert_threshold,omitempty"`
}

// QueryConfig configures the hybrid query engine (§4.6).
type QueryConfig struct {
	SimilarityTopK  int            `yaml:"similarity_top_k,omitempty"`
	RerankTopN      int            `yaml:"rerank_top_n,omitempty"`
	RecencyDecayDays map[string]int `yaml:"recency_decay_days,omitempty"`
	ChatHistoryTokenBudget int      `yaml:"chat_history_token_budget,omitempty"`
}

// IngestionConfig configures the ingestion pipeline's concurrency and
// extraction knobs (§4.4).
type IngestionConfig struct {
	ChunkSize                   int  `yaml:"chunk_size,omitempty"`
	ChunkOverlap                int  `yaml:"chunk_overlap,omitempty"`
	NumWorkers                  int  `yaml:"num_workers,omitempty"`
	MaxConcurrentGraph          int  `yaml:"max_concurrent_graph,omitempty"`
	ExtractMaxTripletsPerChunk  int  `yaml:"extract_max_triplets_per_chunk,omitempty"`
	EnableRelationshipValidation bool `yaml:"enable_relationship_validation"`
}

// SchedulerConfig configures the periodic scheduler and workers (§4.7).
type SchedulerConfig struct {
	LockTTLSeconds     int `yaml:"lock_ttl_seconds,omitempty"`
	LockRefreshSeconds int `yaml:"lock_refresh_seconds,omitempty"`
	JobTimeLimitMinutes int `yaml:"job_time_limit_minutes,omitempty"`
	MaxRetries         int `yaml:"max_retries,omitempty"`
	BackfillDefaultLimit int `yaml:"backfill_default_limit,omitempty"`
	BackfillMaxLimit   int `yaml:"backfill_max_limit,omitempty"`
}

// TelemetryConfig controls OpenTelemetry tracing and metrics export,
// matching the teacher's own ObsConfig shape (internal/observability).
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"service_name,omitempty"`
	ServiceVersion string `yaml:"service_version,omitempty"`
	Environment    string `yaml:"environment,omitempty"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
}

// Config aggregates every sub-config the core needs.
type Config struct {
	Vector       VectorStoreConfig `yaml:"vector_store"`
	Graph        GraphStoreConfig  `yaml:"graph_store"`
	DocStore     DocStoreConfig    `yaml:"doc_store"`
	Redis        RedisConfig       `yaml:"redis"`
	Kafka        KafkaConfig       `yaml:"job_queue"`
	Embedding    EmbeddingConfig   `yaml:"embedding"`
	Extraction   LLMConfig         `yaml:"extraction_llm"`
	Query        LLMConfig         `yaml:"query_llm"`
	Reranker     RerankerConfig    `yaml:"reranker"`
	Dedup        DedupConfig       `yaml:"dedup"`
	QueryEngine  QueryConfig       `yaml:"query_engine"`
	Ingestion    IngestionConfig   `yaml:"ingestion"`
	Scheduler    SchedulerConfig   `yaml:"scheduler"`
	OTel         TelemetryConfig   `yaml:"otel"`
}

// Load reads the configuration from a YAML file, applies defaults, and
// announces both via pterm the way the teacher's LoadConfig does.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		pterm.Error.Printf("Error reading config file: %v\n", err)
		return nil, fmt.Errorf("ragconfig: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		pterm.Error.Printf("Error unmarshaling config: %v\n", err)
		return nil, fmt.Errorf("ragconfig: unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	pterm.Success.Println("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Ingestion.ChunkSize <= 0 {
		cfg.Ingestion.ChunkSize = 1024
		pterm.Info.Println("No chunk_size specified, using default (1024).")
	}
	if cfg.Ingestion.ChunkOverlap <= 0 {
		cfg.Ingestion.ChunkOverlap = 200
		pterm.Info.Println("No chunk_overlap specified, using default (200).")
	}
	if cfg.Ingestion.NumWorkers <= 0 {
		cfg.Ingestion.NumWorkers = 4
		pterm.Info.Println("No num_workers specified, using default (4).")
	}
	if cfg.Ingestion.MaxConcurrentGraph <= 0 {
		cfg.Ingestion.MaxConcurrentGraph = 10
		pterm.Info.Println("No max_concurrent_graph specified, using default (10).")
	}
	if cfg.Ingestion.ExtractMaxTripletsPerChunk <= 0 {
		cfg.Ingestion.ExtractMaxTripletsPerChunk = 5
	}

	if cfg.Dedup.SimilarityThreshold <= 0 {
		cfg.Dedup.SimilarityThreshold = 0.92
	}
	if cfg.Dedup.LevenshteinMaxDistance <= 0 {
		cfg.Dedup.LevenshteinMaxDistance = 3
	}
	if cfg.Dedup.TopK <= 0 {
		cfg.Dedup.TopK = 10
	}
	if cfg.Dedup.BatchSize <= 0 {
		cfg.Dedup.BatchSize = 10
	}
	if cfg.Dedup.AlertThreshold <= 0 {
		cfg.Dedup.AlertThreshold = 100
	}
	if cfg.Dedup.IntervalMinutes <= 0 {
		cfg.Dedup.IntervalMinutes = 15
	}

	if cfg.QueryEngine.SimilarityTopK <= 0 {
		cfg.QueryEngine.SimilarityTopK = 20
	}
	if cfg.QueryEngine.RerankTopN <= 0 {
		cfg.QueryEngine.RerankTopN = 10
	}
	if cfg.QueryEngine.ChatHistoryTokenBudget <= 0 {
		cfg.QueryEngine.ChatHistoryTokenBudget = 3900
	}
	if cfg.QueryEngine.RecencyDecayDays == nil {
		cfg.QueryEngine.RecencyDecayDays = map[string]int{
			"email":      30,
			"attachment": 90,
		}
		pterm.Info.Println("No recency_decay_days specified, using defaults (email=30, attachment=90).")
	}

	if cfg.Scheduler.LockTTLSeconds <= 0 {
		cfg.Scheduler.LockTTLSeconds = 60
	}
	if cfg.Scheduler.LockRefreshSeconds <= 0 {
		cfg.Scheduler.LockRefreshSeconds = 30
	}
	if cfg.Scheduler.JobTimeLimitMinutes <= 0 {
		cfg.Scheduler.JobTimeLimitMinutes = 60
	}
	if cfg.Scheduler.MaxRetries <= 0 {
		cfg.Scheduler.MaxRetries = 3
	}
	if cfg.Scheduler.BackfillDefaultLimit <= 0 {
		cfg.Scheduler.BackfillDefaultLimit = 100
	}
	if cfg.Scheduler.BackfillMaxLimit <= 0 {
		cfg.Scheduler.BackfillMaxLimit = 1000
	}

	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "ragcore"
	}

	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}
	if cfg.Graph.EntityEmbeddingDimensions <= 0 {
		cfg.Graph.EntityEmbeddingDimensions = 1536
	}
}
