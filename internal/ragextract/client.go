// Package ragextract implements the schema-guided entity/relation
// extractor and relationship validator (SPEC_FULL.md §4.2/§4.3). Chat
// client shape is generalized from internal/llm/anthropic/client.go's
// Client (model/maxTokens fields, ctx-first Chat method) so either
// Anthropic or OpenAI can back it.
package ragextract

import (
	"context"

	"ragcore/internal/ragretry"
)

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatClient is the minimal surface the extractor, validator, and query
// engine need from an LLM backend.
type ChatClient interface {
	// Chat sends msgs and returns the assistant's reply text. When
	// jsonMode is true, implementations should request a JSON-only
	// response (response_format / tool-forced JSON, backend-dependent).
	Chat(ctx context.Context, msgs []ChatMessage, temperature float64, jsonMode bool) (string, error)
}

// RetryingChatClient wraps a ChatClient with the core's standard retry
// policy (3 attempts, exponential backoff 1s/2s/4s, SPEC_FULL.md §4.4/§7),
// the same policy ragembed.RetryingEmbedder and
// ragstore.RetryingVectorStore/RetryingGraphStore apply to their calls.
type RetryingChatClient struct {
	inner ChatClient
}

// NewRetryingChatClient wraps inner with the standard retry policy.
func NewRetryingChatClient(inner ChatClient) *RetryingChatClient {
	return &RetryingChatClient{inner: inner}
}

func (r *RetryingChatClient) Chat(ctx context.Context, msgs []ChatMessage, temperature float64, jsonMode bool) (string, error) {
	return ragretry.Do(ctx, func() (string, error) {
		return r.inner.Chat(ctx, msgs, temperature, jsonMode)
	})
}
