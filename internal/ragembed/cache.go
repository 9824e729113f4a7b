package ragembed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// CachedEmbedder wraps an Embedder with a Redis-backed cache keyed by
// hash(normalized_text, model_id), per SPEC_FULL.md §4.1. Only cache hits
// skip the wrapped Embedder; misses are embedded and written back.
// Redis client usage follows workspaces.RedisGenerationCache.
type CachedEmbedder struct {
	inner  Embedder
	client redis.UniversalClient
}

// NewCachedEmbedder wraps inner with a Redis cache on the given client.
func NewCachedEmbedder(inner Embedder, client redis.UniversalClient) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, client: client}
}

func (c *CachedEmbedder) Name() string              { return c.inner.Name() }
func (c *CachedEmbedder) Dimension() int            { return c.inner.Dimension() }
func (c *CachedEmbedder) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Name() + "\x00" + text))
	return "embed:" + hex.EncodeToString(sum[:])
}

// EmbedBatch looks each text up in the cache first, embeds only the misses
// in one call to the wrapped Embedder, and writes the results back.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		key := c.cacheKey(t)
		raw, err := c.client.Get(ctx, key).Bytes()
		if err != nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
			continue
		}
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err != nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
			continue
		}
		out[i] = vec
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	embedded, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range embedded {
		i := missIdx[j]
		out[i] = vec
		if raw, err := json.Marshal(vec); err == nil {
			_ = c.client.Set(ctx, c.cacheKey(missTexts[j]), raw, 0).Err()
		}
	}
	return out, nil
}
