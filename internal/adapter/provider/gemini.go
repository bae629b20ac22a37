package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// Gemini streams content from Google's Gemini API.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Stream implements Provider.
func (g *Gemini) Stream(ctx context.Context, model string, messages []domain.WireMessage, emit DeltaFunc) error {
	contents, system := convertContents(messages)
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if delta := resp.Text(); delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
	return nil
}

// convertContents maps history to Gemini contents. System messages are
// folded into a single system instruction.
func convertContents(msgs []domain.WireMessage) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(msgs))
	var system []string
	for _, msg := range msgs {
		text := msg.Text()
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, text)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}
