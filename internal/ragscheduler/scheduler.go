package ragscheduler

import (
	"context"
	"encoding/json"
	"time"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// schedulerLockKey is the shared Redis key every scheduler instance
// contends for, matching scheduler.py's SCHEDULER_LOCK_KEY.
const schedulerLockKey = "ragcore:scheduler:lock"

// dedupInterval is the entity-dedup trigger period (§4.7: "every 15
// minutes").
const dedupInterval = 15 * time.Minute

// Scheduler enqueues the periodic dedup job under a single-leader Redis
// lock so multiple scheduler instances (e.g. autoscaled replicas) never
// run the same periodic job twice. Grounded directly on
// original_source/app/services/background/scheduler.py's
// acquire_scheduler_lock/start_periodic_scheduler: SET NX EX with a
// background renewal loop, exit cleanly when the lock isn't acquired.
type Scheduler struct {
	Lock  Locker
	Queue Enqueuer
	Clock ragobs.Clock
	Log   ragobs.Logger
	Cfg   ragconfig.SchedulerConfig

	// DedupHoursLookback, when set, is carried on every enqueued
	// DedupPayload so the periodic job runs an incremental scan
	// (ragconfig.DedupConfig.HoursLookback) instead of always forcing a
	// full graph scan.
	DedupHoursLookback *int
}

// NewScheduler builds a Scheduler, filling in no-op observability defaults.
func NewScheduler(lock Locker, queue Enqueuer, cfg ragconfig.SchedulerConfig) *Scheduler {
	return &Scheduler{Lock: lock, Queue: queue, Clock: ragobs.SystemClock{}, Log: ragobs.NoopLogger{}, Cfg: cfg}
}

// Run attempts to acquire the scheduler lock and, if successful, blocks
// enqueuing a dedup job for every tenant in tenantIDs every 15 minutes
// until ctx is cancelled. A scheduler instance that fails to acquire the
// lock returns nil immediately — another instance already owns it.
func (s *Scheduler) Run(ctx context.Context, tenantIDs []string) error {
	ttl := time.Duration(s.Cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	refreshEvery := time.Duration(s.Cfg.LockRefreshSeconds) * time.Second
	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}

	acquired, err := s.Lock.Acquire(ctx, schedulerLockKey, "scheduler", ttl)
	if err != nil {
		s.Log.Error("scheduler_lock_acquire_error", map[string]any{"error": err.Error()})
		return nil
	}
	if !acquired {
		s.Log.Info("scheduler_lock_not_acquired", map[string]any{"reason": "another instance holds the lock"})
		return nil
	}
	s.Log.Info("scheduler_lock_acquired", nil)
	defer func() {
		if err := s.Lock.Release(context.Background(), schedulerLockKey); err != nil {
			s.Log.Error("scheduler_lock_release_failed", map[string]any{"error": err.Error()})
		}
	}()

	refreshTicker := time.NewTicker(refreshEvery)
	defer refreshTicker.Stop()
	dedupTicker := time.NewTicker(dedupInterval)
	defer dedupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refreshTicker.C:
			if err := s.Lock.Refresh(ctx, schedulerLockKey, ttl); err != nil {
				s.Log.Error("scheduler_lock_refresh_failed", map[string]any{"error": err.Error()})
			}
		case <-dedupTicker.C:
			for _, tenantID := range tenantIDs {
				s.enqueueDedup(ctx, tenantID)
			}
		}
	}
}

func (s *Scheduler) enqueueDedup(ctx context.Context, tenantID string) {
	payload, err := json.Marshal(DedupPayload{DryRun: false, HoursLookback: s.DedupHoursLookback})
	if err != nil {
		s.Log.Error("scheduler_marshal_dedup_payload_failed", map[string]any{"error": err.Error()})
		return
	}
	job := ragstore.Job{TenantID: tenantID, Kind: ragstore.JobDedup, Payload: payload}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		s.Log.Error("scheduler_enqueue_dedup_failed", map[string]any{"tenant_id": tenantID, "error": err.Error()})
	}
}
