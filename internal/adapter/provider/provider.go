// Package provider streams completions from upstream model providers for
// the chat gateway.
package provider

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
	"github.com/xiaot623/gogo/streamchat/internal/routing"
)

// DeltaFunc receives each text fragment in order.
type DeltaFunc func(delta string) error

// Provider streams one completion.
type Provider interface {
	Stream(ctx context.Context, model string, messages []domain.WireMessage, emit DeltaFunc) error
}

// UpstreamError is a failure reported by a provider with an HTTP status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// Registry maps routing targets to configured providers.
type Registry struct {
	providers map[routing.Provider]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[routing.Provider]Provider)}
}

// Register binds p to name.
func (r *Registry) Register(name routing.Provider, p Provider) {
	r.providers[name] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name routing.Provider) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Empty reports whether no provider is registered.
func (r *Registry) Empty() bool {
	return len(r.providers) == 0
}

// Options configures the upstream providers.
type Options struct {
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	MistralAPIKey  string
	MistralBaseURL string
	GoogleAPIKey   string
	Mock           bool
}

// NewRegistryFromOptions registers every provider that has credentials.
// Mock mode registers only the mock provider, under every name.
func NewRegistryFromOptions(ctx context.Context, opts Options) (*Registry, error) {
	r := NewRegistry()
	if opts.Mock {
		mock := NewMock()
		for _, name := range []routing.Provider{routing.ProviderOpenAI, routing.ProviderMistral, routing.ProviderGoogle, routing.ProviderMock} {
			r.Register(name, mock)
		}
		return r, nil
	}

	if opts.OpenAIAPIKey != "" {
		r.Register(routing.ProviderOpenAI, NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIBaseURL))
	}
	if opts.MistralAPIKey != "" {
		r.Register(routing.ProviderMistral, NewOpenAI(opts.MistralAPIKey, opts.MistralBaseURL))
	}
	if opts.GoogleAPIKey != "" {
		g, err := NewGemini(ctx, opts.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		r.Register(routing.ProviderGoogle, g)
	}
	return r, nil
}
