package ragembed

import (
	"context"

	"ragcore/internal/ragretry"
)

// RetryingEmbedder wraps an Embedder with the core's standard retry policy
// (3 attempts, exponential backoff 1s/2s/4s) per SPEC_FULL.md §4.4/§7,
// shared by embedding, vector, graph, and LLM calls.
type RetryingEmbedder struct {
	inner Embedder
}

// NewRetrying wraps inner with the standard retry policy.
func NewRetrying(inner Embedder) *RetryingEmbedder {
	return &RetryingEmbedder{inner: inner}
}

func (r *RetryingEmbedder) Name() string                   { return r.inner.Name() }
func (r *RetryingEmbedder) Dimension() int                 { return r.inner.Dimension() }
func (r *RetryingEmbedder) Ping(ctx context.Context) error { return r.inner.Ping(ctx) }

func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ragretry.Do(ctx, func() ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}
