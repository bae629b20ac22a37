// Package routing decides which upstream provider serves a model id.
package routing

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Provider names an upstream model provider.
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderMistral Provider = "mistral"
	ProviderGoogle  Provider = "google"
	ProviderMock    Provider = "mock"
)

// Route is the outcome of a routing decision.
type Route struct {
	Provider Provider
	Model    string
}

// Engine evaluates the routing policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a routing engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_routing.decision"),
		rego.Module("chat_routing.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Route picks the provider and upstream model for modelID.
func (e *Engine) Route(ctx context.Context, modelID string) (Route, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{"model": modelID}))
	if err != nil {
		return Route{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Route{}, fmt.Errorf("routing policy returned no decision for %q", modelID)
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Route{}, fmt.Errorf("unexpected routing decision type %T", results[0].Expressions[0].Value)
	}
	provider, _ := obj["provider"].(string)
	model, _ := obj["model"].(string)
	if provider == "" || model == "" {
		return Route{}, fmt.Errorf("incomplete routing decision for %q", modelID)
	}
	return Route{Provider: Provider(provider), Model: model}, nil
}

// DefaultPolicy is the default routing policy.
const DefaultPolicy = `
package chat_routing

import rego.v1

default decision := {"provider": "google", "model": "gemini-3-flash-preview"}

# All Mistral family ids share one hosted model.
decision := {"provider": "mistral", "model": "mistral-small-latest"} if {
	mistral_family
} else := {"provider": "mistral", "model": input.model} if {
	contains(input.model, "codestral")
} else := {"provider": "google", "model": input.model} if {
	contains(input.model, "gemini")
} else := {"provider": "openai", "model": input.model} if {
	openai_family
}

mistral_family if contains(input.model, "mistral")

mistral_family if contains(input.model, "devstral")

openai_family if startswith(input.model, "gpt-")

openai_family if regex.match("^o[0-9]", input.model)
`
