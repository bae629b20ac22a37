package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyRoutes(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		model string
		want  Route
	}{
		{"mistral-large-3", Route{ProviderMistral, "mistral-small-latest"}},
		{"devstral-2", Route{ProviderMistral, "mistral-small-latest"}},
		{"codestral-latest", Route{ProviderMistral, "codestral-latest"}},
		{"gemini-2.5-flash", Route{ProviderGoogle, "gemini-2.5-flash"}},
		{"gpt-4o-mini", Route{ProviderOpenAI, "gpt-4o-mini"}},
		{"o3-mini", Route{ProviderOpenAI, "o3-mini"}},
		{"claude-sonnet", Route{ProviderGoogle, "gemini-3-flash-preview"}},
		{"", Route{ProviderGoogle, "gemini-3-flash-preview"}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := engine.Route(ctx, tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package chat_routing

import rego.v1

decision := {"provider": "mock", "model": input.model}
`)
	require.NoError(t, err)

	got, err := engine.Route(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, Route{ProviderMock, "anything"}, got)
}

func TestIncompleteDecision(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package chat_routing

import rego.v1

decision := {"provider": "openai"}
`)
	require.NoError(t, err)

	_, err = engine.Route(ctx, "gpt-4o")
	assert.Error(t, err)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package chat_routing\n\ndecision := {")
	assert.Error(t, err)
}
