// Package ragretry provides the single retry policy shared by embedding,
// vector, graph, and LLM calls (SPEC_FULL.md §4.4/§7): 3 attempts,
// exponential backoff 1s/2s/4s, built on github.com/cenkalti/backoff/v5.
// ragembed.RetryingEmbedder, ragstore.RetryingVectorStore/
// RetryingGraphStore, and ragextract.RetryingChatClient all decorate their
// respective interfaces with Do so the policy stays defined in one place.
package ragretry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Do runs op, making at most 3 attempts in all, with exponential backoff
// between attempts starting at 1s and capping at 4s. A context cancellation aborts
// retries immediately.
func Do[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 4 * time.Second
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}
