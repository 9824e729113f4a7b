package ragstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragcore/internal/ragconfig"
)

// JobState is a job's lifecycle state in the jobs table (§4.7: "pull jobs,
// execute, mark running → completed|failed").
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobRecord is the durable row backing at-least-once delivery bookkeeping:
// delivery attempt count, state, and result/error, so a crashed worker's
// in-flight job is still observable and re-runnable (§4.7).
type JobRecord struct {
	ID        string
	TenantID  string
	Kind      JobKind
	State     JobState
	Attempts  int
	Error     string
	StartedAt *time.Time
	EndedAt   *time.Time
	UpdatedAt time.Time
}

// JobStore is the Postgres-backed job-state store a worker reads and
// writes alongside the Kafka JobQueue/JobReader transport.
type JobStore interface {
	// Claim records that a job was delivered, incrementing its attempt
	// counter and moving it to running. attempts starts at 1 on first claim.
	Claim(ctx context.Context, job Job) (JobRecord, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, cause error) error
	// ExceedsMaxRetries reports whether jobID has already been attempted
	// more than maxRetries times, so the worker can give up instead of re-enqueuing.
	ExceedsMaxRetries(ctx context.Context, jobID string, maxRetries int) (bool, error)
	Close()
}

// PostgresJobStore is the Postgres JobStore implementation.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

// NewPostgresJobStore dials Postgres with the same conservative pool
// settings as NewPostgresDocStore and ensures the jobs table exists.
func NewPostgresJobStore(ctx context.Context, cfg ragconfig.DocStoreConfig) (*PostgresJobStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ragstore: parse job store dsn: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 8
	}
	pcfg.MaxConns = maxConns
	pcfg.MinConns = 0
	pcfg.MaxConnLifetime = time.Hour
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("ragstore: create job store pool: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ragstore: ping job store: %w", err)
	}
	store := &PostgresJobStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresJobStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			kind       TEXT NOT NULL,
			state      TEXT NOT NULL,
			attempts   INTEGER NOT NULL DEFAULT 0,
			error      TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ,
			ended_at   TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *PostgresJobStore) Claim(ctx context.Context, job Job) (JobRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, tenant_id, kind, state, attempts, started_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			state = $4,
			attempts = jobs.attempts + 1,
			started_at = now(),
			updated_at = now()
		RETURNING id, tenant_id, kind, state, attempts, error, started_at, ended_at, updated_at
	`, job.ID, job.TenantID, string(job.Kind), string(JobRunning))
	var rec JobRecord
	var kind, state string
	if err := row.Scan(&rec.ID, &rec.TenantID, &kind, &state, &rec.Attempts, &rec.Error, &rec.StartedAt, &rec.EndedAt, &rec.UpdatedAt); err != nil {
		return JobRecord{}, fmt.Errorf("ragstore: claim job %s: %w", job.ID, err)
	}
	rec.Kind = JobKind(kind)
	rec.State = JobState(state)
	return rec, nil
}

func (s *PostgresJobStore) Complete(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET state = $2, ended_at = now(), updated_at = now() WHERE id = $1`, jobID, string(JobCompleted))
	return err
}

func (s *PostgresJobStore) Fail(ctx context.Context, jobID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET state = $2, error = $3, ended_at = now(), updated_at = now() WHERE id = $1`, jobID, string(JobFailed), msg)
	return err
}

func (s *PostgresJobStore) ExceedsMaxRetries(ctx context.Context, jobID string, maxRetries int) (bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT attempts FROM jobs WHERE id = $1`, jobID)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return false, nil
	}
	return attempts > maxRetries, nil
}

func (s *PostgresJobStore) Close() { s.pool.Close() }
