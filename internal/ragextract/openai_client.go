package ragextract

import (
	"context"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"ragcore/internal/ragconfig"
)

// OpenAIChatClient backs ChatClient with the Chat Completions API.
type OpenAIChatClient struct {
	sdk   sdk.Client
	model string
}

// NewOpenAIChatClient builds a ChatClient from cfg.
func NewOpenAIChatClient(cfg ragconfig.LLMConfig) *OpenAIChatClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIChatClient{sdk: sdk.NewClient(opts...), model: cfg.Model}
}

func (c *OpenAIChatClient) Chat(ctx context.Context, msgs []ChatMessage, temperature float64, jsonMode bool) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(c.model),
		Temperature: sdk.Float(temperature),
	}
	for _, m := range msgs {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, sdk.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, sdk.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, sdk.UserMessage(m.Content))
		}
	}
	if jsonMode {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(comp.Choices) == 0 {
		return "", nil
	}
	return comp.Choices[0].Message.Content, nil
}
