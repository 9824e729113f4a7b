package ragscheduler

import (
	"context"
	"errors"
	"testing"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

type fakeJobStoreRecord struct {
	state    ragstore.JobState
	attempts int
	lastErr  string
}

type fakeJobStore struct {
	records map[string]*fakeJobStoreRecord
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{records: map[string]*fakeJobStoreRecord{}}
}

func (f *fakeJobStore) Claim(ctx context.Context, job ragstore.Job) (ragstore.JobRecord, error) {
	rec, ok := f.records[job.ID]
	if !ok {
		rec = &fakeJobStoreRecord{}
		f.records[job.ID] = rec
	}
	rec.attempts++
	rec.state = ragstore.JobRunning
	return ragstore.JobRecord{ID: job.ID, State: rec.state, Attempts: rec.attempts}, nil
}

func (f *fakeJobStore) Complete(ctx context.Context, jobID string) error {
	if rec, ok := f.records[jobID]; ok {
		rec.state = ragstore.JobCompleted
	}
	return nil
}

func (f *fakeJobStore) Fail(ctx context.Context, jobID string, cause error) error {
	rec, ok := f.records[jobID]
	if !ok {
		rec = &fakeJobStoreRecord{}
		f.records[jobID] = rec
	}
	rec.state = ragstore.JobFailed
	if cause != nil {
		rec.lastErr = cause.Error()
	}
	return nil
}

func (f *fakeJobStore) ExceedsMaxRetries(ctx context.Context, jobID string, maxRetries int) (bool, error) {
	rec, ok := f.records[jobID]
	if !ok {
		return false, nil
	}
	return rec.attempts > maxRetries, nil
}

func (f *fakeJobStore) Close() {}

type fakeExecutor struct {
	err   error
	calls []ragstore.Job
}

func (f *fakeExecutor) Execute(ctx context.Context, job ragstore.Job) error {
	f.calls = append(f.calls, job)
	return f.err
}

func TestWorkerHandleMarksJobCompletedOnSuccess(t *testing.T) {
	store := newFakeJobStore()
	exec := &fakeExecutor{}
	w := NewWorker(nil, store, exec, ragconfig.SchedulerConfig{})
	w.Log = ragobs.NoopLogger{}

	job := ragstore.Job{ID: "job-1", TenantID: "tenant-a", Kind: ragstore.JobDedup}
	w.handle(context.Background(), job)

	if len(exec.calls) != 1 {
		t.Fatalf("expected executor to run once, got %d", len(exec.calls))
	}
	if store.records["job-1"].state != ragstore.JobCompleted {
		t.Fatalf("expected job marked completed, got %v", store.records["job-1"].state)
	}
}

func TestWorkerHandleMarksJobFailedOnExecutorError(t *testing.T) {
	store := newFakeJobStore()
	exec := &fakeExecutor{err: errors.New("boom")}
	w := NewWorker(nil, store, exec, ragconfig.SchedulerConfig{})

	job := ragstore.Job{ID: "job-2", TenantID: "tenant-a", Kind: ragstore.JobIngest}
	w.handle(context.Background(), job)

	rec := store.records["job-2"]
	if rec.state != ragstore.JobFailed {
		t.Fatalf("expected job marked failed, got %v", rec.state)
	}
	if rec.lastErr == "" {
		t.Fatalf("expected failure cause to be recorded")
	}
}

func TestWorkerHandleAbandonsJobPastMaxRetries(t *testing.T) {
	store := newFakeJobStore()
	store.records["job-3"] = &fakeJobStoreRecord{attempts: 5}
	exec := &fakeExecutor{}
	w := NewWorker(nil, store, exec, ragconfig.SchedulerConfig{MaxRetries: 3})

	job := ragstore.Job{ID: "job-3", TenantID: "tenant-a", Kind: ragstore.JobBackfill}
	w.handle(context.Background(), job)

	if len(exec.calls) != 0 {
		t.Fatalf("expected executor not to run once retries are exhausted, got %d calls", len(exec.calls))
	}
	if store.records["job-3"].state != ragstore.JobFailed {
		t.Fatalf("expected job marked failed after exhausting retries, got %v", store.records["job-3"].state)
	}
}

func TestWorkerHandleWorksWithoutJobStore(t *testing.T) {
	exec := &fakeExecutor{}
	w := NewWorker(nil, nil, exec, ragconfig.SchedulerConfig{})

	job := ragstore.Job{ID: "job-4", TenantID: "tenant-a", Kind: ragstore.JobDedup}
	w.handle(context.Background(), job)

	if len(exec.calls) != 1 {
		t.Fatalf("expected executor to run once even with a nil JobStore, got %d", len(exec.calls))
	}
}
