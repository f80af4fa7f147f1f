package llms

import (
	"fmt"

	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/registry"
)

// Registry manages named Provider instances, mirroring the pattern used by
// the tool and agent registries.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// CreateFromConfig builds and registers a Provider from an LLMProviderConfig.
func (r *Registry) CreateFromConfig(name string, cfg *config.LLMProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("llm name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config %q: %w", name, err)
	}

	var provider Provider
	var err error
	switch cfg.Type {
	case "anthropic":
		provider, err = NewAnthropicProvider(cfg)
	case "mock":
		provider = NewMockProvider()
	default:
		return nil, fmt.Errorf("unsupported llm type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("creating llm provider %q: %w", name, err)
	}

	if err := r.Register(name, provider); err != nil {
		return nil, fmt.Errorf("registering llm provider %q: %w", name, err)
	}
	return provider, nil
}

// GetProvider retrieves a registered provider by name, returning an error
// (rather than Get's bool) to match the tool and agent registries' lookup
// shape.
func (r *Registry) GetProvider(name string) (Provider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm provider %q not found", name)
	}
	return p, nil
}
