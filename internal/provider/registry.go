package provider

import (
	"fmt"
	"os"

	"github.com/aspendos/council/internal/config"
)

// Registry resolves model identifiers to provider backends. Vendors
// without a dedicated entry route through the configured gateway
// provider, matching the original service's OpenRouter arrangement.
type Registry struct {
	byName  map[string]Provider
	gateway Provider
}

// NewRegistry builds provider adapters from configuration. Providers
// whose API key environment variable is unset are skipped with no
// error; resolution for their models falls through to the gateway.
func NewRegistry(cfgs []config.ProviderConfig) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(cfgs))}
	for _, pc := range cfgs {
		key := os.Getenv(pc.APIKeyEnv)
		if key == "" {
			continue
		}
		p := NewOpenAI(pc.Name, pc.BaseURL, key)
		r.byName[pc.Name] = p
		if pc.Gateway {
			r.gateway = p
		}
	}
	return r
}

// NewStaticRegistry builds a registry over pre-built providers, keyed
// by name. Test hook; gateway may be nil.
func NewStaticRegistry(providers map[string]Provider, gateway Provider) *Registry {
	byName := make(map[string]Provider, len(providers))
	for name, p := range providers {
		byName[name] = p
	}
	return &Registry{byName: byName, gateway: gateway}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// ForModel resolves the provider that serves modelID: the vendor's own
// adapter when registered, otherwise the gateway. The returned name is
// the resolved provider's, which is the key used for health tracking.
func (r *Registry) ForModel(modelID string) (Provider, error) {
	vendor := config.Vendor(modelID)
	if p, ok := r.byName[vendor]; ok {
		return p, nil
	}
	if r.gateway != nil {
		return r.gateway, nil
	}
	return nil, NewError(KindConfig, vendor, modelID,
		fmt.Sprintf("no provider configured for vendor %q and no gateway available", vendor))
}
