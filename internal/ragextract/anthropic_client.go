package ragextract

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ragcore/internal/ragconfig"
)

// AnthropicChatClient backs ChatClient with the Anthropic Messages API.
// Constructor shape follows the teacher's anthropic.New.
type AnthropicChatClient struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicChatClient builds a ChatClient from cfg.
func NewAnthropicChatClient(cfg ragconfig.LLMConfig) *AnthropicChatClient {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicChatClient{sdk: anthropic.NewClient(opts...), model: model, maxTokens: maxTokens}
}

func (c *AnthropicChatClient) Chat(ctx context.Context, msgs []ChatMessage, temperature float64, jsonMode bool) (string, error) {
	var sys string
	var converted []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case "system":
			sys = m.Content
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if jsonMode {
		if sys == "" {
			sys = "Respond with JSON only, no prose."
		} else {
			sys += "\nRespond with JSON only, no prose."
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    converted,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
