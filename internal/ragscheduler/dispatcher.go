package ragscheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ragcore/internal/ragdedup"
	"ragcore/internal/ragdomain"
	"ragcore/internal/ragingest"
	"ragcore/internal/ragstore"
)

// Executor runs one Job to completion, the domain-specific counterpart to
// worker.Executor's ExecuteTask.
type Executor interface {
	Execute(ctx context.Context, job ragstore.Job) error
}

// Enqueuer is the minimal job-publishing capability the scheduler and
// backfill task need; *ragstore.JobQueue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job ragstore.Job) error
}

// JobSource is the minimal job-consuming capability a Worker needs;
// *ragstore.JobReader satisfies it.
type JobSource interface {
	ReadJob(ctx context.Context) (ragstore.Job, error)
}

// Locker is the distributed mutual-exclusion capability the periodic
// scheduler needs; *ragstore.DistributedLock satisfies it.
type Locker interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}

// DocumentFetcher re-fetches a document's content from its source system
// by ID, the Go analogue of ingest_from_supabase.py's row fetch — needed
// because DocStore only retains metadata, not content, so a backfill job
// must go back to the source to re-derive a missing artifact.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, tenantID, documentID string) (ragdomain.Document, bool, error)
}

// Dispatcher routes a Job to the ingestion pipeline, the dedup engine, or
// the backfill re-ingest path by its Kind.
type Dispatcher struct {
	Pipeline *ragingest.Pipeline
	Deduper  *ragdedup.Deduper
	DocStore ragstore.DocStore
	Fetcher  DocumentFetcher
}

func (d *Dispatcher) Execute(ctx context.Context, job ragstore.Job) error {
	switch job.Kind {
	case ragstore.JobIngest:
		return d.executeIngest(ctx, job)
	case ragstore.JobDedup:
		return d.executeDedup(ctx, job)
	case ragstore.JobBackfill:
		return d.executeBackfillItem(ctx, job)
	default:
		return fmt.Errorf("ragscheduler: unknown job kind %q", job.Kind)
	}
}

func (d *Dispatcher) executeIngest(ctx context.Context, job ragstore.Job) error {
	var payload IngestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("ragscheduler: unmarshal ingest payload: %w", err)
	}
	result := d.Pipeline.IngestDocument(ctx, payload.Document)
	if result.Status == ragdomain.StatusError {
		return fmt.Errorf("ragscheduler: ingest document %s: %w", result.DocumentID, result.Err)
	}
	return nil
}

func (d *Dispatcher) executeDedup(ctx context.Context, job ragstore.Job) error {
	var payload DedupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("ragscheduler: unmarshal dedup payload: %w", err)
	}
	_, err := d.Deduper.Run(ctx, job.TenantID, payload.DryRun, ragdedup.RunOptions{
		SimilarityThreshold: payload.SimilarityThreshold,
		MaxStringDistance:   payload.MaxStringDistance,
		HoursLookback:       payload.HoursLookback,
	})
	if err != nil {
		return fmt.Errorf("ragscheduler: run dedup for tenant %s: %w", job.TenantID, err)
	}
	return nil
}

// executeBackfillItem re-fetches the document from its source system and
// re-runs it through the ingestion pipeline, which naturally re-derives
// whichever artifact (embeddings, graph chunk nodes) was missing.
func (d *Dispatcher) executeBackfillItem(ctx context.Context, job ragstore.Job) error {
	var payload BackfillItemPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("ragscheduler: unmarshal backfill payload: %w", err)
	}
	if d.Fetcher == nil {
		return fmt.Errorf("ragscheduler: no document fetcher configured for backfill of %s", payload.DocumentID)
	}
	doc, found, err := d.Fetcher.FetchDocument(ctx, job.TenantID, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("ragscheduler: fetch document %s: %w", payload.DocumentID, err)
	}
	if !found {
		return fmt.Errorf("ragscheduler: document %s no longer exists at source", payload.DocumentID)
	}
	result := d.Pipeline.IngestDocument(ctx, doc)
	if result.Status == ragdomain.StatusError {
		return fmt.Errorf("ragscheduler: backfill ingest %s: %w", payload.DocumentID, result.Err)
	}
	if d.DocStore != nil {
		if err := d.DocStore.MarkArtifact(ctx, job.TenantID, payload.DocumentID, payload.ArtifactKind); err != nil {
			return fmt.Errorf("ragscheduler: mark artifact %s for %s: %w", payload.ArtifactKind, payload.DocumentID, err)
		}
	}
	return nil
}
