package agents

import (
	"context"
	"fmt"

	"github.com/genforge-dev/genforge/internal/secrets"
)

// LLMConfig provides LLM configuration settings. This interface matches
// the methods userconfig.Config already exposes.
type LLMConfig interface {
	LLMEnabled() bool
	LLMProviders() []string
}

// ErrLLMDisabled is returned when agent features are disabled via
// configuration.
var ErrLLMDisabled = fmt.Errorf("agents: LLM features are disabled via configuration")

// factoryOptions holds configuration for creating a Factory.
type factoryOptions struct {
	order           []string
	enabled         bool
	enabledExplicit bool
	maxTurns        int
}

// FactoryOption configures a Factory.
type FactoryOption func(*factoryOptions)

// WithConfig applies LLMConfig settings. If cfg.LLMEnabled() is false,
// NewFactory returns ErrLLMDisabled. If cfg.LLMProviders() is non-empty it
// becomes the preferred provider order.
func WithConfig(cfg LLMConfig) FactoryOption {
	return func(o *factoryOptions) {
		o.enabled = cfg.LLMEnabled()
		o.enabledExplicit = true
		if providers := cfg.LLMProviders(); len(providers) > 0 {
			o.order = providers
		}
	}
}

// WithProviderOrder sets the preferred provider order explicitly.
func WithProviderOrder(order []string) FactoryOption {
	return func(o *factoryOptions) { o.order = order }
}

// WithAgentMaxTurns overrides DefaultMaxTurns for every Agent the factory
// builds.
func WithAgentMaxTurns(n int) FactoryOption {
	return func(o *factoryOptions) { o.maxTurns = n }
}

// Factory builds Agents backed by whichever provider has a usable secret
// configured, honoring the preferred order. Unlike the orchestrator's own
// transport-failure retry (internal/orchestrator's retryTransport, which
// handles mid-job timeouts), the factory only decides which provider a job
// starts with.
type Factory struct {
	providers map[string]Provider
	order     []string
}

// NewFactory auto-detects available providers from internal/secrets:
//   - claude: anthropic_api_key
//   - gemini: google_api_key
//
// Returns ErrLLMDisabled if disabled via WithConfig. Returns an error if no
// provider has a configured secret.
func NewFactory(ctx context.Context, opts ...FactoryOption) (*Factory, error) {
	o := &factoryOptions{order: []string{"claude", "gemini"}, enabled: true, maxTurns: DefaultMaxTurns}
	for _, opt := range opts {
		opt(o)
	}
	if o.enabledExplicit && !o.enabled {
		return nil, ErrLLMDisabled
	}

	f := &Factory{providers: make(map[string]Provider), order: o.order}

	if key, err := secrets.Get("anthropic_api_key"); err == nil {
		if p, err := NewClaudeProvider(key); err == nil {
			f.providers["claude"] = p
		}
	}
	if key, err := secrets.Get("google_api_key"); err == nil {
		if p, err := NewGeminiProvider(ctx, key); err == nil {
			f.providers["gemini"] = p
		}
	}

	if len(f.providers) == 0 {
		return nil, fmt.Errorf("agents: no provider available: set an anthropic_api_key or google_api_key secret")
	}
	return f, nil
}

// Provider returns the first available provider in preferred order.
func (f *Factory) Provider() (Provider, error) {
	for _, name := range f.order {
		if p, ok := f.providers[name]; ok {
			return p, nil
		}
	}
	for _, p := range f.providers {
		return p, nil
	}
	return nil, fmt.Errorf("agents: no provider available")
}

// HasProvider reports whether name is registered.
func (f *Factory) HasProvider(name string) bool {
	_, ok := f.providers[name]
	return ok
}
