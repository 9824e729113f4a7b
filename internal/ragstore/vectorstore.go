// Package ragstore provides the storage adapters backing ingestion and
// query: a Qdrant vector store, a Neo4j graph store, a Postgres
// document/idempotency store, a Redis distributed lock (plus the Redis
// client the embedding cache shares), and a Kafka-backed job queue.
package ragstore

import "context"

// FilterOp is a comparison operator in a VectorFilter node, matching the
// query engine's metadata filter tree (§4.6).
type FilterOp string

const (
	FilterEQ  FilterOp = "eq"
	FilterGTE FilterOp = "gte"
	FilterLTE FilterOp = "lte"
	FilterIN  FilterOp = "in"
)

// VectorFilter is one leaf of a metadata filter applied during similarity
// search; multiple filters are ANDed together.
type VectorFilter struct {
	Key   string
	Op    FilterOp
	Value any // scalar for EQ/GTE/LTE, []any for IN
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string
	Score    float64 // higher is closer
	Metadata map[string]any
}

// VectorStore is the pluggable interface over the chunk-embedding index.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filters []VectorFilter) ([]VectorResult, error)
	Dimension() int
	Close() error
}
