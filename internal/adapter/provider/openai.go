package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// OpenAI streams chat completions from an OpenAI-compatible API. Mistral is
// served through the same client with its own base URL.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates a provider for the API at baseURL. An empty baseURL
// means the OpenAI default.
func NewOpenAI(apiKey, baseURL string, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAI{client: openai.NewClient(opts...)}
}

// Stream implements Provider.
func (p *OpenAI) Stream(ctx context.Context, model string, messages []domain.WireMessage, emit DeltaFunc) error {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(messages),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return &UpstreamError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}

func convertMessages(msgs []domain.WireMessage) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		text := msg.Text()
		switch msg.Role {
		case domain.RoleSystem:
			result = append(result, openai.SystemMessage(text))
		case domain.RoleAssistant:
			result = append(result, openai.AssistantMessage(text))
		default:
			result = append(result, openai.UserMessage(text))
		}
	}
	return result
}
