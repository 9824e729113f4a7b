package ragstore

import (
	"context"

	"ragcore/internal/ragdomain"
	"ragcore/internal/ragretry"
)

// RetryingVectorStore wraps a VectorStore, applying the core's standard
// retry policy (3 attempts, exponential backoff 1s/2s/4s, SPEC_FULL.md
// §4.4/§7) to Upsert, the one call the policy names for vector stores.
// Reads and deletes pass straight through, the same split
// ragembed.RetryingEmbedder/ragextract.RetryingChatClient use for their
// single retried call.
type RetryingVectorStore struct {
	inner VectorStore
}

// NewRetryingVectorStore wraps inner with the standard retry policy.
func NewRetryingVectorStore(inner VectorStore) *RetryingVectorStore {
	return &RetryingVectorStore{inner: inner}
}

func (r *RetryingVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	_, err := ragretry.Do(ctx, func() (struct{}, error) {
		return struct{}{}, r.inner.Upsert(ctx, id, vector, metadata)
	})
	return err
}

func (r *RetryingVectorStore) Delete(ctx context.Context, id string) error {
	return r.inner.Delete(ctx, id)
}

func (r *RetryingVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filters []VectorFilter) ([]VectorResult, error) {
	return r.inner.SimilaritySearch(ctx, vector, k, filters)
}

func (r *RetryingVectorStore) Dimension() int { return r.inner.Dimension() }
func (r *RetryingVectorStore) Close() error   { return r.inner.Close() }

// RetryingGraphStore wraps a GraphStore, applying the core's standard
// retry policy to the three upsert calls the policy names for graph
// stores (UpsertChunk, UpsertEntity, UpsertRelation). Reads, deletes, and
// MergeEntities (a distinct dedup-time operation, not an upsert) pass
// straight through.
type RetryingGraphStore struct {
	inner GraphStore
}

// NewRetryingGraphStore wraps inner with the standard retry policy.
func NewRetryingGraphStore(inner GraphStore) *RetryingGraphStore {
	return &RetryingGraphStore{inner: inner}
}

func (r *RetryingGraphStore) UpsertChunk(ctx context.Context, tenantID string, node ragdomain.ChunkNode, entities ragdomain.ChunkEntities) error {
	_, err := ragretry.Do(ctx, func() (struct{}, error) {
		return struct{}{}, r.inner.UpsertChunk(ctx, tenantID, node, entities)
	})
	return err
}

func (r *RetryingGraphStore) UpsertEntity(ctx context.Context, tenantID string, entity ragdomain.Entity) error {
	_, err := ragretry.Do(ctx, func() (struct{}, error) {
		return struct{}{}, r.inner.UpsertEntity(ctx, tenantID, entity)
	})
	return err
}

func (r *RetryingGraphStore) UpsertRelation(ctx context.Context, tenantID string, relation ragdomain.Relation) error {
	_, err := ragretry.Do(ctx, func() (struct{}, error) {
		return struct{}{}, r.inner.UpsertRelation(ctx, tenantID, relation)
	})
	return err
}

func (r *RetryingGraphStore) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return r.inner.DeleteDocument(ctx, tenantID, documentID)
}

func (r *RetryingGraphStore) EntitiesByLabel(ctx context.Context, tenantID string, label ragdomain.Label, since int64) ([]ragdomain.Entity, error) {
	return r.inner.EntitiesByLabel(ctx, tenantID, label, since)
}

func (r *RetryingGraphStore) MergeEntities(ctx context.Context, tenantID string, primaryID string, absorbedIDs []string) error {
	return r.inner.MergeEntities(ctx, tenantID, primaryID, absorbedIDs)
}

func (r *RetryingGraphStore) ExpandNeighbors(ctx context.Context, tenantID string, seedChunkIDs []string, hops int) ([]ragdomain.ChunkNode, error) {
	return r.inner.ExpandNeighbors(ctx, tenantID, seedChunkIDs, hops)
}

func (r *RetryingGraphStore) RunReadQuery(ctx context.Context, tenantID string, cypher string, params map[string]any, allowedFields []string) ([]map[string]any, error) {
	return r.inner.RunReadQuery(ctx, tenantID, cypher, params, allowedFields)
}

func (r *RetryingGraphStore) Close(ctx context.Context) error { return r.inner.Close(ctx) }
