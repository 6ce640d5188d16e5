// Package bootstrap performs one-shot process-start initialization: it provides
// the Maps API key to the SDK credential holder, registers backend plugins, then
// hands off to the normal startup sequence.
package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/services/browser"
	"github.com/ternarybob/mapcheck/internal/services/jsruntime"
	"github.com/ternarybob/mapcheck/internal/services/loader"
)

// Credentials holds the API key the mapping SDK reads at load time
type Credentials struct {
	mu     sync.RWMutex
	apiKey string
}

// ProvideAPIKey stores the key. Later calls replace earlier ones.
func (c *Credentials) ProvideAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// APIKey returns the provided key
func (c *Credentials) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// BackendFactory builds a backend from the final configuration and credentials
type BackendFactory func(config *common.Config, creds *Credentials, logger arbor.ILogger) interfaces.Backend

// Registry maps backend names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]BackendFactory)}
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(name string, factory BackendFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("backend name is required")
	}
	if factory == nil {
		return fmt.Errorf("backend %s: factory is nil", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory for name
func (r *Registry) Lookup(name string) (BackendFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns registered backend names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named backend
func (r *Registry) New(name string, config *common.Config, creds *Credentials, logger arbor.ILogger) (interfaces.Backend, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, r.Names())
	}
	return factory(config, creds, logger), nil
}

// RegisterBuiltins registers the browser and script backends
func RegisterBuiltins(registry *Registry) error {
	if err := registry.Register(browser.BackendName, func(config *common.Config, creds *Credentials, logger arbor.ILogger) interfaces.Backend {
		return browser.NewBackend(config.Browser, loader.New(config.Maps, creds.APIKey()), logger)
	}); err != nil {
		return err
	}
	return registry.Register(jsruntime.BackendName, func(config *common.Config, creds *Credentials, logger arbor.ILogger) interfaces.Backend {
		return jsruntime.NewBackend(config.Script, logger)
	})
}

// Launch provides the configured API key, registers the built-in backends and then defers to startup.
// Only startup's error is consumed.
func Launch(ctx context.Context, config *common.Config, creds *Credentials, registry *Registry, logger arbor.ILogger, startup func(ctx context.Context) error) error {
	creds.ProvideAPIKey(config.Maps.APIKey)

	if err := RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("failed to register backends: %w", err)
	}

	logger.Debug().
		Str("api_key", common.RedactKey(creds.APIKey())).
		Strs("backends", registry.Names()).
		Msg("Bootstrap complete")

	return startup(ctx)
}
