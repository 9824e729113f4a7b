package ragscheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// BackfillTask enumerates documents lacking a derived artifact and
// enqueues a JobBackfill job per document, up to a limit (§10: "Backfill
// task parameterised by artifact kind"). It generalizes the original's
// per-artifact ad hoc scripts (ingest_from_supabase.py and siblings) into
// one parameterised task.
type BackfillTask struct {
	DocStore ragstore.DocStore
	Queue    Enqueuer
	Log      ragobs.Logger
	Cfg      ragconfig.SchedulerConfig
}

// NewBackfillTask builds a BackfillTask, filling in a no-op logger default.
func NewBackfillTask(docStore ragstore.DocStore, queue Enqueuer, cfg ragconfig.SchedulerConfig) *BackfillTask {
	return &BackfillTask{DocStore: docStore, Queue: queue, Log: ragobs.NoopLogger{}, Cfg: cfg}
}

// Run enumerates up to limit documents for tenantID missing artifactKind
// and enqueues one JobBackfill job per document, returning the number
// enqueued. limit <= 0 uses the configured default; it is always clamped
// to the configured maximum.
func (b *BackfillTask) Run(ctx context.Context, tenantID, artifactKind string, limit int) (int, error) {
	limit = b.clampLimit(limit)
	docs, err := b.DocStore.ListMissingArtifact(ctx, tenantID, artifactKind, limit)
	if err != nil {
		return 0, fmt.Errorf("ragscheduler: list documents missing %s: %w", artifactKind, err)
	}

	enqueued := 0
	for _, doc := range docs {
		payload, err := json.Marshal(BackfillItemPayload{DocumentID: doc.DocID, ArtifactKind: artifactKind})
		if err != nil {
			b.Log.Error("backfill_marshal_payload_failed", map[string]any{"document_id": doc.DocID, "error": err.Error()})
			continue
		}
		job := ragstore.Job{TenantID: tenantID, Kind: ragstore.JobBackfill, Payload: payload}
		if err := b.Queue.Enqueue(ctx, job); err != nil {
			b.Log.Error("backfill_enqueue_failed", map[string]any{"document_id": doc.DocID, "error": err.Error()})
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (b *BackfillTask) clampLimit(limit int) int {
	def := b.Cfg.BackfillDefaultLimit
	if def <= 0 {
		def = 100
	}
	max := b.Cfg.BackfillMaxLimit
	if max <= 0 {
		max = 1000
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
