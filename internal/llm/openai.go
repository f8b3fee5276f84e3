package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, vLLM, llama.cpp server, LM Studio). Messages are sent role-tagged.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(baseURL, apiKey, model string, timeout time.Duration) (*OpenAIBackend, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai backend requires a model")
	}
	opts := []option.RequestOption{
		option.WithMaxRetries(2),
	}
	if strings.TrimSpace(apiKey) != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		// Local OpenAI-compatible servers accept any key.
		opts = append(opts, option.WithAPIKey("local"))
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := openai.NewClient(opts...)
	return &OpenAIBackend{client: &client, model: model}, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	}
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
