package providerfactory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/darwin/pkg/providers"
)

// Manager owns a set of named providers. It is safe for concurrent use.
type Manager struct {
	providers map[string]providers.Provider
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates an empty provider manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		providers: make(map[string]providers.Provider),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// AddProvider creates a provider from config and registers it, replacing
// and closing any provider already registered under the same name.
func (m *Manager) AddProvider(config providers.ProviderConfig) error {
	provider, err := NewProviderWithHealthCheck(m.ctx, config)
	if err != nil {
		return fmt.Errorf("failed to add provider %q: %w", config.Name, err)
	}
	m.Register(provider)
	return nil
}

// Register adds an already constructed provider.
func (m *Manager) Register(provider providers.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := provider.GetName()
	if existing, ok := m.providers[name]; ok {
		slog.Warn("replacing existing provider", "name", name)
		_ = existing.Close()
	}
	m.providers[name] = provider

	slog.Info("provider added to manager",
		"name", name,
		"type", provider.GetType(),
		"total_providers", len(m.providers),
	)
}

// RemoveProvider removes a provider from the manager and closes it.
func (m *Manager) RemoveProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	provider, ok := m.providers[name]
	if !ok {
		return fmt.Errorf("provider %q not found", name)
	}
	if err := provider.Close(); err != nil {
		slog.Error("error closing provider", "name", name, "error", err)
	}
	delete(m.providers, name)
	return nil
}

// GetProvider returns a provider by name.
func (m *Manager) GetProvider(name string) (providers.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provider, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return provider, nil
}

// GetProviderNames returns the registered names, sorted.
func (m *Manager) GetProviderNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetHealthyProviders returns the providers that are currently healthy.
func (m *Manager) GetHealthyProviders() map[string]providers.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	healthy := make(map[string]providers.Provider)
	for name, provider := range m.providers {
		if provider.IsHealthy() {
			healthy[name] = provider
		}
	}
	return healthy
}

// ProviderCount returns the total number of providers.
func (m *Manager) ProviderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.providers)
}

// LoadFromConfig creates every configured provider. Failures are logged
// and returned joined; successfully created providers stay registered.
func (m *Manager) LoadFromConfig(configs []providers.ProviderConfig) error {
	var errs []error
	for _, config := range configs {
		if err := m.AddProvider(config); err != nil {
			errs = append(errs, err)
			slog.Error("failed to load provider", "name", config.Name, "error", err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to load %d provider(s): %w", len(errs), errors.Join(errs...))
	}
	slog.Info("providers loaded", "count", len(configs))
	return nil
}

// Close stops health checkers and closes every provider.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancel()

	var errs []error
	for name, provider := range m.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.providers = make(map[string]providers.Provider)
	return errors.Join(errs...)
}

// HealthSummary provides an overview of provider health.
type HealthSummary struct {
	Total     int                                 `json:"total"`
	Healthy   int                                 `json:"healthy"`
	Unhealthy int                                 `json:"unhealthy"`
	Details   map[string]providers.ProviderHealth `json:"-"`
}

// GetHealthSummary returns a summary of provider health status.
func (m *Manager) GetHealthSummary() HealthSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := HealthSummary{
		Total:   len(m.providers),
		Details: make(map[string]providers.ProviderHealth, len(m.providers)),
	}
	for name, provider := range m.providers {
		health := provider.GetHealth()
		summary.Details[name] = health
		if health.IsHealthy {
			summary.Healthy++
		}
	}
	summary.Unhealthy = summary.Total - summary.Healthy
	return summary
}
