package ragstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragcore/internal/ragconfig"
)

// DocumentRecord is the document-metadata row tracked for idempotency and
// statistics, independent of the vector/graph stores.
type DocumentRecord struct {
	DocID       string
	TenantID    string
	Source      string
	SourceID    string
	ContentHash string
	ChunkCount  int
	Artifacts   map[string]bool // derived-artifact kind -> present, e.g. "embeddings", "graph_chunks"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats is the aggregate counters behind GetStats (§10 supplemented
// feature): per-tenant document and chunk counts and last-ingest time,
// read from the documents table. It carries no vector-point or graph
// entity/relation counts.
type Stats struct {
	TenantID       string
	DocumentCount  int64
	ChunkCount     int64
	LastIngestedAt *time.Time
}

// DocStore is the Postgres-backed document-metadata and idempotency
// store. Method shape follows ingest.DocumentLookup generalized to full
// CRUD plus the stats aggregate.
type DocStore interface {
	LookupByContentHash(ctx context.Context, tenantID, contentHash string) (DocumentRecord, bool, error)
	Upsert(ctx context.Context, rec DocumentRecord) error
	Delete(ctx context.Context, tenantID, docID string) error
	Stats(ctx context.Context, tenantID string) (Stats, error)
	// MarkArtifact records that derived artifact kind now exists for docID,
	// backing the backfill task's "missing artifact" scan (§10).
	MarkArtifact(ctx context.Context, tenantID, docID, kind string) error
	// ListMissingArtifact returns up to limit documents for tenantID that
	// have not been marked with kind, oldest-first.
	ListMissingArtifact(ctx context.Context, tenantID, kind string, limit int) ([]DocumentRecord, error)
	Close()
}

// PostgresDocStore is the Postgres DocStore implementation.
type PostgresDocStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDocStore dials Postgres with conservative pool settings,
// matching factory.go's newPgPool convention, and ensures the schema
// exists.
func NewPostgresDocStore(ctx context.Context, cfg ragconfig.DocStoreConfig) (*PostgresDocStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ragstore: parse doc store dsn: %w", err)
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
		return nil, fmt.Errorf("ragstore: create doc store pool: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ragstore: ping doc store: %w", err)
	}
	store := &PostgresDocStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresDocStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			doc_id       TEXT NOT NULL,
			tenant_id    TEXT NOT NULL,
			source       TEXT NOT NULL,
			source_id    TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			chunk_count  INTEGER NOT NULL DEFAULT 0,
			artifacts    JSONB NOT NULL DEFAULT '{}',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (tenant_id, doc_id)
		);
		CREATE INDEX IF NOT EXISTS documents_content_hash_idx ON documents (tenant_id, content_hash);
	`)
	return err
}

func (s *PostgresDocStore) LookupByContentHash(ctx context.Context, tenantID, contentHash string) (DocumentRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT doc_id, tenant_id, source, source_id, content_hash, chunk_count, artifacts, created_at, updated_at
		FROM documents WHERE tenant_id = $1 AND content_hash = $2
	`, tenantID, contentHash)
	rec, err := scanDocumentRecord(row)
	if err != nil {
		return DocumentRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *PostgresDocStore) Upsert(ctx context.Context, rec DocumentRecord) error {
	artifacts, err := json.Marshal(rec.Artifacts)
	if err != nil {
		return fmt.Errorf("ragstore: marshal document artifacts: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (doc_id, tenant_id, source, source_id, content_hash, chunk_count, artifacts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (tenant_id, doc_id) DO UPDATE SET
			source = EXCLUDED.source,
			source_id = EXCLUDED.source_id,
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			artifacts = EXCLUDED.artifacts,
			updated_at = now()
	`, rec.DocID, rec.TenantID, rec.Source, rec.SourceID, rec.ContentHash, rec.ChunkCount, artifacts)
	return err
}

// MarkArtifact sets artifacts[kind] = true for docID, creating the document
// row if it does not already exist (a bare marker, chunk_count 0).
func (s *PostgresDocStore) MarkArtifact(ctx context.Context, tenantID, docID, kind string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (doc_id, tenant_id, source, source_id, content_hash, artifacts, updated_at)
		VALUES ($1, $2, '', '', '', jsonb_build_object($3::text, true), now())
		ON CONFLICT (tenant_id, doc_id) DO UPDATE SET
			artifacts = documents.artifacts || jsonb_build_object($3::text, true),
			updated_at = now()
	`, docID, tenantID, kind)
	return err
}

// ListMissingArtifact returns up to limit documents for tenantID whose
// artifacts map does not yet have kind set true, oldest-first — the query
// behind the backfill task (§10).
func (s *PostgresDocStore) ListMissingArtifact(ctx context.Context, tenantID, kind string, limit int) ([]DocumentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc_id, tenant_id, source, source_id, content_hash, chunk_count, artifacts, created_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND COALESCE((artifacts->>$2)::boolean, false) = false
		ORDER BY created_at ASC
		LIMIT $3
	`, tenantID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("ragstore: list documents missing artifact %s: %w", kind, err)
	}
	defer rows.Close()

	var out []DocumentRecord
	for rows.Next() {
		rec, err := scanDocumentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ragstore: scan document row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rowScanner is the subset of pgx.Row/pgx.Rows needed to scan one document row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentRecord(row rowScanner) (DocumentRecord, error) {
	var rec DocumentRecord
	var artifacts []byte
	if err := row.Scan(&rec.DocID, &rec.TenantID, &rec.Source, &rec.SourceID, &rec.ContentHash, &rec.ChunkCount, &artifacts, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return DocumentRecord{}, err
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &rec.Artifacts); err != nil {
			return DocumentRecord{}, fmt.Errorf("ragstore: unmarshal document artifacts: %w", err)
		}
	}
	return rec, nil
}

func (s *PostgresDocStore) Delete(ctx context.Context, tenantID, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE tenant_id = $1 AND doc_id = $2`, tenantID, docID)
	return err
}

func (s *PostgresDocStore) Stats(ctx context.Context, tenantID string) (Stats, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), MAX(updated_at)
		FROM documents WHERE tenant_id = $1
	`, tenantID)
	var st Stats
	st.TenantID = tenantID
	var lastIngested *time.Time
	if err := row.Scan(&st.DocumentCount, &st.ChunkCount, &lastIngested); err != nil {
		return Stats{}, err
	}
	st.LastIngestedAt = lastIngested
	return st, nil
}

func (s *PostgresDocStore) Close() { s.pool.Close() }
