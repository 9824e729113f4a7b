package ragscheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// Worker pulls jobs from a JobReader and runs them to completion,
// recording attempt/state bookkeeping in a JobStore so a crashed worker's
// in-flight job is still observable and re-runnable (§4.7).
type Worker struct {
	Reader     JobSource
	JobStore   ragstore.JobStore
	Executor   Executor
	Log        ragobs.Logger
	Metrics    ragobs.Metrics
	Clock      ragobs.Clock
	MaxRetries int
	TimeLimit  time.Duration
}

// NewWorker builds a Worker from cfg, filling in no-op observability
// defaults.
func NewWorker(reader JobSource, jobStore ragstore.JobStore, executor Executor, cfg ragconfig.SchedulerConfig) *Worker {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	limit := time.Duration(cfg.JobTimeLimitMinutes) * time.Minute
	if limit <= 0 {
		limit = time.Hour
	}
	return &Worker{
		Reader:     reader,
		JobStore:   jobStore,
		Executor:   executor,
		Log:        ragobs.NoopLogger{},
		Metrics:    ragobs.NoopMetrics{},
		Clock:      ragobs.SystemClock{},
		MaxRetries: maxRetries,
		TimeLimit:  limit,
	}
}

// Run pulls jobs until ctx is cancelled, handling each one in turn. A
// single worker goroutine processes jobs serially; run multiple Workers
// concurrently (one per goroutine, sharing the same consumer group) for
// parallelism.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.Reader.ReadJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Error("scheduler_read_job_failed", map[string]any{"error": err.Error()})
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job ragstore.Job) {
	labels := map[string]string{"kind": string(job.Kind), "tenant": job.TenantID}

	if w.JobStore != nil {
		if exceeded, err := w.JobStore.ExceedsMaxRetries(ctx, job.ID, w.MaxRetries); err == nil && exceeded {
			w.Log.Error("scheduler_job_retries_exhausted", map[string]any{"job_id": job.ID, "kind": job.Kind})
			w.Metrics.IncCounter("scheduler_jobs_abandoned_total", labels)
			_ = w.JobStore.Fail(ctx, job.ID, fmt.Errorf("max retries (%d) exceeded", w.MaxRetries))
			return
		}
		if _, err := w.JobStore.Claim(ctx, job); err != nil {
			w.Log.Error("scheduler_claim_job_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.TimeLimit)
	defer cancel()

	start := w.Clock.Now()
	err := w.Executor.Execute(jobCtx, job)
	w.Metrics.ObserveHistogram("scheduler_job_duration_ms", float64(w.Clock.Now().Sub(start)/time.Millisecond), labels)

	if err != nil {
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("job exceeded its %s time limit: %w", w.TimeLimit, err)
		}
		w.Log.Error("scheduler_job_failed", map[string]any{"job_id": job.ID, "kind": job.Kind, "error": err.Error()})
		w.Metrics.IncCounter("scheduler_jobs_failed_total", labels)
		if w.JobStore != nil {
			_ = w.JobStore.Fail(ctx, job.ID, err)
		}
		return
	}

	w.Metrics.IncCounter("scheduler_jobs_completed_total", labels)
	if w.JobStore != nil {
		_ = w.JobStore.Complete(ctx, job.ID)
	}
}
