package ragscheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragstore"
)

type fakeLocker struct {
	acquireResult bool
	acquireErr    error
	acquired      bool
	released      bool
	refreshCount  int
}

func (f *fakeLocker) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	f.acquired = f.acquireResult
	return f.acquireResult, f.acquireErr
}
func (f *fakeLocker) Release(ctx context.Context, key string) error {
	f.released = true
	return nil
}
func (f *fakeLocker) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	f.refreshCount++
	return nil
}

type fakeEnqueuer struct {
	jobs []ragstore.Job
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job ragstore.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func TestSchedulerRunReturnsImmediatelyWhenLockNotAcquired(t *testing.T) {
	lock := &fakeLocker{acquireResult: false}
	queue := &fakeEnqueuer{}
	s := NewScheduler(lock, queue, ragconfig.SchedulerConfig{})

	err := s.Run(context.Background(), []string{"tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lock.released {
		t.Fatalf("expected no release when lock was never acquired")
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("expected no jobs enqueued, got %d", len(queue.jobs))
	}
}

func TestSchedulerEnqueueDedupPublishesOneJobPerTenant(t *testing.T) {
	queue := &fakeEnqueuer{}
	s := NewScheduler(&fakeLocker{acquireResult: true}, queue, ragconfig.SchedulerConfig{})

	s.enqueueDedup(context.Background(), "tenant-a")
	s.enqueueDedup(context.Background(), "tenant-b")

	if len(queue.jobs) != 2 {
		t.Fatalf("expected 2 enqueued jobs, got %d", len(queue.jobs))
	}
	for _, job := range queue.jobs {
		if job.Kind != ragstore.JobDedup {
			t.Fatalf("expected JobDedup kind, got %v", job.Kind)
		}
	}
	if queue.jobs[0].TenantID != "tenant-a" || queue.jobs[1].TenantID != "tenant-b" {
		t.Fatalf("unexpected tenant routing: %+v", queue.jobs)
	}
}

func TestSchedulerEnqueueDedupCarriesConfiguredHoursLookback(t *testing.T) {
	queue := &fakeEnqueuer{}
	s := NewScheduler(&fakeLocker{acquireResult: true}, queue, ragconfig.SchedulerConfig{})
	lookback := 6
	s.DedupHoursLookback = &lookback

	s.enqueueDedup(context.Background(), "tenant-a")

	if len(queue.jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(queue.jobs))
	}
	var payload DedupPayload
	if err := json.Unmarshal(queue.jobs[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.HoursLookback == nil || *payload.HoursLookback != 6 {
		t.Fatalf("expected hours_lookback 6, got %+v", payload.HoursLookback)
	}
}

func TestSchedulerRunRefreshesLockAndExitsOnCancel(t *testing.T) {
	lock := &fakeLocker{acquireResult: true}
	queue := &fakeEnqueuer{}
	s := NewScheduler(lock, queue, ragconfig.SchedulerConfig{LockRefreshSeconds: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, nil)
	if err == nil {
		t.Fatalf("expected context deadline error, got nil")
	}
	if !lock.released {
		t.Fatalf("expected lock released on exit")
	}
	if lock.refreshCount < 1 {
		t.Fatalf("expected at least one lock refresh, got %d", lock.refreshCount)
	}
}
