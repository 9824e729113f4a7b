// Package ragscheduler implements the job queue consumer, the periodic
// dedup scheduler, and the backfill task SPEC_FULL.md §4.7 names. Task
// shape follows internal/playground/worker/worker.go's Task/Result/
// Executor split (domain-adapted from prompt-eval rows to ingest/dedup/
// backfill jobs); the periodic-lock semantics follow
// original_source/app/services/background/scheduler.py.
package ragscheduler

import (
	"ragcore/internal/ragdomain"
)

// IngestPayload carries a full document for a JobIngest job.
type IngestPayload struct {
	Document ragdomain.Document `json:"document"`
}

// DedupPayload carries the dry-run/threshold-override knobs for a
// JobDedup job, mirroring ragdedup.Deduper.Run's parameters.
type DedupPayload struct {
	DryRun              bool     `json:"dry_run"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	MaxStringDistance   *int     `json:"max_string_distance,omitempty"`
	HoursLookback       *int     `json:"hours_lookback,omitempty"`
}

// BackfillItemPayload is one unit of work enqueued by BackfillTask: re-run
// ingestion for DocumentID so ArtifactKind gets (re)derived.
type BackfillItemPayload struct {
	DocumentID   string `json:"document_id"`
	ArtifactKind string `json:"artifact_kind"`
}
