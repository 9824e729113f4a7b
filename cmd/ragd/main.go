// Command ragd is the service entrypoint: it wires configuration into
// every store, the ingestion pipeline, the dedup engine, the hybrid query
// engine, and the scheduler, then exposes the external interface (§6) over
// HTTP. Composition-root style follows the teacher's root main.go/
// cmd/agentd/main.go: .env loaded before anything else, a flat sequence of
// "build X from cfg, fail fast on error", then http.NewServeMux/ListenAndServe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ragcore/internal/ragchunk"
	"ragcore/internal/ragconfig"
	"ragcore/internal/ragdedup"
	"ragcore/internal/ragdomain"
	"ragcore/internal/ragembed"
	"ragcore/internal/ragextract"
	"ragcore/internal/ragingest"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragquery"
	"ragcore/internal/ragscheduler"
	"ragcore/internal/ragstore"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to ragd configuration file")
	addr := flag.String("addr", ":8088", "HTTP listen address")
	runScheduler := flag.Bool("scheduler", true, "run the periodic dedup scheduler and job worker")
	flag.Parse()

	log := ragobs.NewZerologLogger()

	cfg, err := ragconfig.Load(*configPath)
	if err != nil {
		log.Error("ragd_config_load_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := ragobs.InitOTel(ctx, cfg.OTel)
	if err != nil {
		log.Error("ragd_otel_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Error("ragd_otel_shutdown_failed", map[string]any{"error": err.Error()})
		}
	}()

	metrics := ragobs.NewOtelMetrics()

	application, err := wireApp(ctx, cfg, log, metrics)
	if err != nil {
		log.Error("ragd_wire_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer application.Close(context.Background())

	if *runScheduler {
		go application.runScheduler(ctx)
		go application.runWorker(ctx)
	}

	mux := http.NewServeMux()
	application.registerRoutes(mux)

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("ragd_listening", map[string]any{"addr": *addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("ragd_server_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// app holds every wired dependency the HTTP handlers and background
// goroutines need.
type app struct {
	cfg *ragconfig.Config
	log ragobs.Logger

	vectorStore ragstore.VectorStore
	graphStore  ragstore.GraphStore
	docStore    ragstore.DocStore
	jobStore    ragstore.JobStore
	jobQueue    *ragstore.JobQueue
	jobReader   *ragstore.JobReader
	lock        *ragstore.DistributedLock

	pipeline *ragingest.Pipeline
	deduper  *ragdedup.Deduper
	query    *ragquery.Engine

	dispatcher *ragscheduler.Dispatcher
	worker     *ragscheduler.Worker
	scheduler  *ragscheduler.Scheduler
	backfill   *ragscheduler.BackfillTask
}

func wireApp(ctx context.Context, cfg *ragconfig.Config, log ragobs.Logger, metrics ragobs.Metrics) (*app, error) {
	qdrantStore, err := ragstore.NewQdrantVectorStore(ctx, cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("ragd: connect qdrant: %w", err)
	}
	vectorStore := ragstore.VectorStore(ragstore.NewRetryingVectorStore(qdrantStore))

	neo4jStore, err := ragstore.NewNeo4jGraphStore(ctx, cfg.Graph)
	if err != nil {
		return nil, fmt.Errorf("ragd: connect neo4j: %w", err)
	}
	graphStore := ragstore.GraphStore(ragstore.NewRetryingGraphStore(neo4jStore))
	docStore, err := ragstore.NewPostgresDocStore(ctx, cfg.DocStore)
	if err != nil {
		return nil, fmt.Errorf("ragd: connect doc store: %w", err)
	}
	jobStore, err := ragstore.NewPostgresJobStore(ctx, cfg.DocStore)
	if err != nil {
		return nil, fmt.Errorf("ragd: connect job store: %w", err)
	}
	jobQueue, err := ragstore.NewJobQueue(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("ragd: connect job queue producer: %w", err)
	}
	jobReader, err := ragstore.NewJobReader(cfg.Kafka, "ragd-worker")
	if err != nil {
		return nil, fmt.Errorf("ragd: connect job queue consumer: %w", err)
	}

	redisClient := ragstore.NewRedisClient(cfg.Redis)
	lock := ragstore.NewDistributedLock(redisClient)

	embedder := ragembed.NewRetrying(ragembed.NewCachedEmbedder(
		ragembed.NewClient(cfg.Embedding, cfg.Embedding.Dimensions),
		redisClient,
	))
	extractChat := ragextract.ChatClient(ragextract.NewRetryingChatClient(buildChatClient(cfg.Extraction)))
	queryChat := ragextract.ChatClient(ragextract.NewRetryingChatClient(buildChatClient(cfg.Query)))

	// Request-scoped components (ingestion, dedup, query) log through the
	// lightweight JSONLogger; the scheduler/worker/backfill side, closer
	// to the distributed-lock and job-queue machinery, keeps zerolog.
	reqLog := &ragobs.JSONLogger{}

	pipeline := ragingest.New(cfg.Ingestion)
	pipeline.Chunker = ragchunk.RecursiveChunker{}
	pipeline.Embedder = embedder
	pipeline.VectorStore = vectorStore
	pipeline.GraphStore = graphStore
	pipeline.DocStore = docStore
	pipeline.Extractor = ragextract.NewSchemaExtractor(extractChat, cfg.Ingestion.ExtractMaxTripletsPerChunk)
	if cfg.Ingestion.EnableRelationshipValidation {
		pipeline.Validator = ragextract.NewRelationshipValidator(extractChat)
	}
	pipeline.Log = reqLog
	pipeline.Metrics = metrics

	deduper := ragdedup.New(graphStore, cfg.Dedup)
	deduper.Embedder = embedder
	deduper.Log = reqLog

	var reranker ragquery.Reranker = ragquery.NoopReranker{}
	if cfg.Reranker.Enabled {
		reranker = ragquery.NewHTTPReranker(cfg.Reranker)
	}
	queryEngine := ragquery.New(graphStore, vectorStore, embedder, queryChat, reranker, cfg.QueryEngine)
	queryEngine.Log = reqLog

	dispatcher := &ragscheduler.Dispatcher{
		Pipeline: pipeline,
		Deduper:  deduper,
		DocStore: docStore,
	}
	worker := ragscheduler.NewWorker(jobReader, jobStore, dispatcher, cfg.Scheduler)
	worker.Log = log
	worker.Metrics = metrics
	scheduler := ragscheduler.NewScheduler(lock, jobQueue, cfg.Scheduler)
	scheduler.Log = log
	scheduler.DedupHoursLookback = cfg.Dedup.HoursLookback
	backfill := ragscheduler.NewBackfillTask(docStore, jobQueue, cfg.Scheduler)
	backfill.Log = log

	return &app{
		cfg:         cfg,
		log:         log,
		vectorStore: vectorStore,
		graphStore:  graphStore,
		docStore:    docStore,
		jobStore:    jobStore,
		jobQueue:    jobQueue,
		jobReader:   jobReader,
		lock:        lock,
		pipeline:    pipeline,
		deduper:     deduper,
		query:       queryEngine,
		dispatcher:  dispatcher,
		worker:      worker,
		scheduler:   scheduler,
		backfill:    backfill,
	}, nil
}

// Close releases every live connection the app holds.
func (a *app) Close(ctx context.Context) {
	_ = a.vectorStore.Close()
	_ = a.graphStore.Close(ctx)
	a.docStore.Close()
	a.jobStore.Close()
	_ = a.jobQueue.Close()
	_ = a.jobReader.Close()
}

func (a *app) runScheduler(ctx context.Context) {
	tenantIDs := knownTenantIDs()
	if err := a.scheduler.Run(ctx, tenantIDs); err != nil && ctx.Err() == nil {
		a.log.Error("ragd_scheduler_exited", map[string]any{"error": err.Error()})
	}
}

func (a *app) runWorker(ctx context.Context) {
	if err := a.worker.Run(ctx); err != nil && ctx.Err() == nil {
		a.log.Error("ragd_worker_exited", map[string]any{"error": err.Error()})
	}
}

// knownTenantIDs lists the tenants the periodic dedup scan covers. In this
// single-tenant-by-default deployment shape, it's read from the
// RAGD_TENANT_IDS environment variable (comma-separated), falling back to
// a single "default" tenant.
func knownTenantIDs() []string {
	raw := os.Getenv("RAGD_TENANT_IDS")
	if raw == "" {
		return []string{"default"}
	}
	var ids []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				ids = append(ids, raw[start:i])
			}
			start = i + 1
		}
	}
	if len(ids) == 0 {
		return []string{"default"}
	}
	return ids
}

func (a *app) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/v1/ingest", a.handleIngest)
	mux.HandleFunc("/v1/ingest/batch", a.handleIngestBatch)
	mux.HandleFunc("/v1/query", a.handleQuery)
	mux.HandleFunc("/v1/chat", a.handleChat)
	mux.HandleFunc("/v1/dedup", a.handleDedup)
	mux.HandleFunc("/v1/stats", a.handleStats)
	mux.HandleFunc("/v1/backfill", a.handleBackfill)
}

func (a *app) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var doc ragdomain.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	result := a.pipeline.IngestDocument(r.Context(), doc)
	writeJSON(w, result)
}

func (a *app) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Documents          []ragdomain.Document `json:"documents"`
		NumWorkers         int                  `json:"num_workers"`
		MaxConcurrentGraph int                  `json:"max_concurrent_graph"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	results := a.pipeline.IngestBatch(r.Context(), req.Documents, req.NumWorkers, req.MaxConcurrentGraph)
	writeJSON(w, results)
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TenantID string `json:"tenant_id"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	resp, err := a.query.Query(r.Context(), req.TenantID, req.Question)
	if err != nil {
		a.log.Error("ragd_query_failed", map[string]any{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func (a *app) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TenantID string              `json:"tenant_id"`
		Message  string              `json:"message"`
		History  []ragquery.ChatTurn `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	resp, err := a.query.Chat(r.Context(), req.TenantID, req.Message, req.History)
	if err != nil {
		a.log.Error("ragd_chat_failed", map[string]any{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func (a *app) handleDedup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TenantID            string   `json:"tenant_id"`
		DryRun              bool     `json:"dry_run"`
		SimilarityThreshold *float64 `json:"similarity_threshold"`
		MaxStringDistance   *int     `json:"max_string_distance"`
		HoursLookback       *int     `json:"hours_lookback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	report, err := a.deduper.Run(r.Context(), req.TenantID, req.DryRun, ragdedup.RunOptions{
		SimilarityThreshold: req.SimilarityThreshold,
		MaxStringDistance:   req.MaxStringDistance,
		HoursLookback:       req.HoursLookback,
	})
	if err != nil {
		a.log.Error("ragd_dedup_failed", map[string]any{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	stats, err := a.docStore.Stats(r.Context(), tenantID)
	if err != nil {
		a.log.Error("ragd_stats_failed", map[string]any{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (a *app) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TenantID     string `json:"tenant_id"`
		ArtifactKind string `json:"artifact_kind"`
		Limit        int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	enqueued, err := a.backfill.Run(r.Context(), req.TenantID, req.ArtifactKind, req.Limit)
	if err != nil {
		a.log.Error("ragd_backfill_failed", map[string]any{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"enqueued": enqueued})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func buildChatClient(cfg ragconfig.LLMConfig) ragextract.ChatClient {
	if cfg.Backend == "openai" {
		return ragextract.NewOpenAIChatClient(cfg)
	}
	return ragextract.NewAnthropicChatClient(cfg)
}
