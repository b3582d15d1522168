// Package llm provides the remote model drivers. The bundled drivers
// cover Anthropic, OpenAI, and any local Ollama install; every failure
// surfaces as *models.RemoteModelError so the orchestrator can degrade to
// its deterministic fallback without inspecting provider details.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"
	"github.com/rs/zerolog/log"
)

// Registry holds named model drivers. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]contracts.ModelDriver
}

// NewRegistry creates an empty model driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]contracts.ModelDriver),
	}
}

// Register adds a driver under its kind. Overwrites if exists.
func (r *Registry) Register(driver contracts.ModelDriver) {
	r.mu.Lock()
	r.drivers[driver.Kind()] = driver
	r.mu.Unlock()
	log.Info().Str("kind", driver.Kind()).Msg("Model driver registered")
}

// Get returns the driver by kind, or an error if not found.
func (r *Registry) Get(kind string) (contracts.ModelDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("model driver not found: %s", kind)
	}
	return d, nil
}

// List returns all registered driver kinds.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.drivers))
	for k := range r.drivers {
		kinds = append(kinds, k)
	}
	return kinds
}

// HealthCheckAll pings every registered driver and returns errors keyed by kind.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	snapshot := make(map[string]contracts.ModelDriver, len(r.drivers))
	for k, v := range r.drivers {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	for kind, driver := range snapshot {
		results[kind] = driver.HealthCheck(ctx)
	}
	return results
}

// FromConfig builds the configured provider's driver wrapped with the
// retry policy. Unknown providers fall back to the OpenAI-compatible
// driver pointed at the configured endpoint.
func FromConfig(cfg config.RemoteConfig) contracts.ModelDriver {
	var driver contracts.ModelDriver
	switch cfg.Provider {
	case "anthropic":
		driver = NewAnthropicDriver(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.Timeout)
	case "ollama":
		driver = NewOllamaDriver(cfg.Model, cfg.Endpoint, cfg.Timeout)
	default:
		driver = NewOpenAIDriver(cfg.APIKey, cfg.Model, cfg.Endpoint, cfg.Timeout)
	}
	return WithRetry(driver, cfg.MaxAttempts)
}
