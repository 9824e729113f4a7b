// Package ragingest implements the ingestion pipeline: prepare, dedup
// (content-hash idempotency), chunk, embed, vector-upsert,
// extract-and-validate, graph-upsert. Stage sequencing and per-stage
// metrics/timing follow the teacher's rag/service.Service.Ingest; the
// vector/graph fan-out concurrency pattern follows agent/warpp.go's
// errgroup-based parallel-stage idiom.
package ragingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"ragcore/internal/ragchunk"
	"ragcore/internal/ragconfig"
	"ragcore/internal/ragdomain"
	"ragcore/internal/ragembed"
	"ragcore/internal/ragextract"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// Pipeline wires every stage of document ingestion together.
type Pipeline struct {
	Chunker      ragchunk.Chunker
	Embedder     ragembed.Embedder
	Extractor    *ragextract.SchemaExtractor
	Validator    *ragextract.RelationshipValidator
	VectorStore  ragstore.VectorStore
	GraphStore   ragstore.GraphStore
	DocStore     ragstore.DocStore

	Log     ragobs.Logger
	Metrics ragobs.Metrics
	Clock   ragobs.Clock

	Cfg ragconfig.IngestionConfig
}

// New builds a Pipeline, filling in no-op observability defaults.
func New(cfg ragconfig.IngestionConfig) *Pipeline {
	return &Pipeline{
		Cfg:     cfg,
		Log:     ragobs.NoopLogger{},
		Metrics: ragobs.NoopMetrics{},
		Clock:   ragobs.SystemClock{},
	}
}

func (p *Pipeline) stageDuration(stage, tenant string, start time.Time) {
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(p.Clock.Now().Sub(start)/time.Millisecond), map[string]string{"stage": stage, "tenant": tenant})
}

// IngestDocument runs the full pipeline for one document and returns its
// result. It has no error return: document-scoped failures
// (embedding/extraction/etc.) are reported in the returned
// IngestResult's Status/ErrorKind per the Result-type error handling
// design (§7/§9).
func (p *Pipeline) IngestDocument(ctx context.Context, doc ragdomain.Document) ragdomain.IngestResult {
	start := p.Clock.Now()
	p.Metrics.IncCounter("ingestion_docs_total", map[string]string{"tenant": doc.TenantID})

	doc.Normalize()
	hash := ragdomain.ContentHash(doc.Content)

	if p.DocStore != nil {
		t0 := p.Clock.Now()
		existing, found, err := p.DocStore.LookupByContentHash(ctx, doc.TenantID, hash)
		p.stageDuration("idempotency", doc.TenantID, t0)
		if err == nil && found && existing.ContentHash == hash {
			p.Log.Info("ingest_skip_unchanged", map[string]any{"document_id": doc.DocID, "tenant_id": doc.TenantID})
			return ragdomain.IngestResult{DocumentID: doc.DocID, Status: ragdomain.StatusSkipped, ErrorKind: ragdomain.ErrKindDuplicateSkipped}
		}
	}

	t0 := p.Clock.Now()
	chunkSize := p.Cfg.ChunkSize
	overlap := p.Cfg.ChunkOverlap
	rawChunks, err := p.Chunker.Chunk(doc.Content, ragchunk.Options{TargetSize: chunkSize, Overlap: overlap})
	p.stageDuration("chunk", doc.TenantID, t0)
	if err != nil {
		return ragdomain.IngestResult{DocumentID: doc.DocID, Status: ragdomain.StatusError, ErrorKind: ragdomain.ErrKindValidation, Err: err}
	}

	createdTS, hasTS := doc.CreatedAtTimestamp()
	chunks := make([]ragdomain.Chunk, len(rawChunks))
	for i, rc := range rawChunks {
		chunks[i] = ragdomain.Chunk{
			ChunkID:      fmt.Sprintf("chunk:%s:%d", doc.DocID, rc.Index),
			DocumentID:   doc.DocID,
			Index:        rc.Index,
			Text:         rc.Text,
			TenantID:     doc.TenantID,
			Source:       doc.Source,
			DocumentType: doc.DocumentType,
			Title:        doc.Title,
			CreatedAtTS:  createdTS,
			HasTimestamp: hasTS,
		}
	}

	t0 = p.Clock.Now()
	if err := p.embedAndUpsertVectors(ctx, chunks); err != nil {
		p.stageDuration("embed_vector", doc.TenantID, t0)
		return ragdomain.IngestResult{DocumentID: doc.DocID, Status: ragdomain.StatusError, ErrorKind: ragdomain.ErrKindEmbedding, Err: err, ChunkCount: len(chunks)}
	}
	p.stageDuration("embed_vector", doc.TenantID, t0)

	t0 = p.Clock.Now()
	entityCount, relationCount, extractErr := p.extractAndUpsertGraph(ctx, doc, chunks)
	p.stageDuration("extract_graph", doc.TenantID, t0)

	if p.DocStore != nil {
		_ = p.DocStore.Upsert(ctx, ragstore.DocumentRecord{
			DocID:       doc.DocID,
			TenantID:    doc.TenantID,
			Source:      doc.Source,
			SourceID:    doc.SourceID,
			ContentHash: hash,
			ChunkCount:  len(chunks),
			Artifacts: map[string]bool{
				"embeddings":   true,
				"graph_chunks": extractErr == nil,
			},
		})
	}

	status := ragdomain.StatusSuccess
	errKind := ragdomain.ErrKindNone
	if extractErr != nil {
		status = ragdomain.StatusPartialSuccess
		errKind = ragdomain.ErrKindExtraction
	}
	p.stageDuration("total", doc.TenantID, start)
	return ragdomain.IngestResult{
		DocumentID:    doc.DocID,
		Status:        status,
		ErrorKind:     errKind,
		Err:           extractErr,
		ChunkCount:    len(chunks),
		EntityCount:   entityCount,
		RelationCount: relationCount,
	}
}

// embedAndUpsertVectors embeds every chunk in one batch call and upserts
// each into the vector store, bounded by num_workers.
func (p *Pipeline) embedAndUpsertVectors(ctx context.Context, chunks []ragdomain.Chunk) error {
	if len(chunks) == 0 || p.Embedder == nil {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("ragingest: embed batch: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("ragingest: embedding count mismatch: got %d, want %d", len(vecs), len(chunks))
	}

	if p.VectorStore == nil {
		return nil
	}
	numWorkers := p.Cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i := range chunks {
		i := i
		chunks[i].Embedding = vecs[i]
		g.Go(func() error {
			return p.VectorStore.Upsert(gctx, chunks[i].ChunkID, chunks[i].Embedding, chunks[i].Metadata())
		})
	}
	return g.Wait()
}

// extractAndUpsertGraph runs schema-guided extraction and relationship
// validation per chunk, bounded by max_concurrent_graph, then upserts
// each chunk's fan-out into the graph store. A per-chunk extraction
// failure is logged and does not abort the document: that chunk's node is
// still written, without entities or relations, and no error is returned
// for it. A graph-store write error is returned, and IngestDocument
// reports it as a partial success.
func (p *Pipeline) extractAndUpsertGraph(ctx context.Context, doc ragdomain.Document, chunks []ragdomain.Chunk) (entityCount, relationCount int, err error) {
	if p.Extractor == nil || p.GraphStore == nil {
		return 0, 0, nil
	}
	maxConcurrent := p.Cfg.MaxConcurrentGraph
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	g, gctx := errgroup.WithContext(ctx)

	type partial struct {
		entities  int
		relations int
	}
	results := make([]partial, len(chunks))
	var firstErr error

	for i := range chunks {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			firstErr = err
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			extraction, err := p.Extractor.Extract(gctx, chunks[i].Text)
			if err != nil {
				p.Log.Error("extraction_failed", map[string]any{"chunk_id": chunks[i].ChunkID, "error": err.Error()})
				// contained: the chunk node is still written, with no entities
				// or relations, and the document still succeeds overall
				extraction.Entities, extraction.Relations = nil, nil
			}
			relations := extraction.Relations
			if p.Cfg.EnableRelationshipValidation && p.Validator != nil {
				relations = p.Validator.ValidateAll(gctx, relations, chunks[i].Text)
			}
			chunkNode := ragdomain.ChunkNode{
				ChunkID:      chunks[i].ChunkID,
				DocumentID:   chunks[i].DocumentID,
				Text:         chunks[i].Text,
				Title:        chunks[i].Title,
				Source:       chunks[i].Source,
				DocumentType: chunks[i].DocumentType,
				CreatedAtTS:  chunks[i].CreatedAtTS,
				HasTimestamp: chunks[i].HasTimestamp,
			}
			ce := ragdomain.ChunkEntities{Node: chunkNode, Entities: extraction.Entities, Relations: relations}
			if doc.DocumentType == "email" {
				ce.SentFrom, ce.ReceivedBy = emailEdges(doc)
			}
			if err := p.GraphStore.UpsertChunk(gctx, doc.TenantID, chunkNode, ce); err != nil {
				return fmt.Errorf("upsert chunk %s: %w", chunks[i].ChunkID, err)
			}
			results[i] = partial{entities: len(extraction.Entities), relations: len(relations)}
			return nil
		})
	}
	if firstErr == nil {
		firstErr = g.Wait()
	}
	for _, r := range results {
		entityCount += r.entities
		relationCount += r.relations
	}
	return entityCount, relationCount, firstErr
}

// emailEdges builds the SENT/RECEIVED entity edges for an email document
// from its sender/recipient address fields (§4.4's email-specific rule).
func emailEdges(doc ragdomain.Document) (sentFrom, receivedBy []ragdomain.Entity) {
	if doc.SenderAddress != "" {
		sentFrom = append(sentFrom, ragdomain.Entity{
			EntityID: ragdomain.EntityID(ragdomain.LabelPerson, doc.SenderAddress),
			Label:    ragdomain.LabelPerson,
			Name:     doc.SenderAddress,
		})
	}
	for _, addr := range doc.ToAddresses {
		receivedBy = append(receivedBy, ragdomain.Entity{
			EntityID: ragdomain.EntityID(ragdomain.LabelPerson, addr),
			Label:    ragdomain.LabelPerson,
			Name:     addr,
		})
	}
	return sentFrom, receivedBy
}
