package providers

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry holds one adapter per provider kind. It is filled at startup and
// only read afterwards, so concurrent ExecuteRequest calls share it safely.
type Registry struct {
	mu        sync.RWMutex
	providers map[Kind]Provider
	order     []Kind
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Kind]Provider),
	}
}

// RegisterProvider registers a provider instance
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	kind := provider.Kind()
	if _, ok := ParseKind(kind.String()); !ok {
		return fmt.Errorf("unknown provider kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[kind]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.providers[kind] = provider
	r.order = append(r.order, kind)
	return nil
}

// GetProvider retrieves a provider by id
func (r *Registry) GetProvider(id string) (Provider, error) {
	kind, ok := ParseKind(id)
	if !ok {
		return nil, ErrProviderNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[kind]
	if !exists {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// ListProviders returns all registered provider ids in registration order
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.order))
	for _, kind := range r.order {
		ids = append(ids, kind.String())
	}
	return ids
}

// Providers returns registered providers in registration order
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Provider, 0, len(r.order))
	for _, kind := range r.order {
		list = append(list, r.providers[kind])
	}
	return list
}

// GetProviderCount returns the number of registered providers
func (r *Registry) GetProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// RegistryBuilder helps build a registry with multiple providers
type RegistryBuilder struct {
	registry *Registry
	errs     []error
}

// NewRegistryBuilder creates a new registry builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		registry: NewRegistry(),
	}
}

// WithProvider adds a provider instance
func (rb *RegistryBuilder) WithProvider(provider Provider) *RegistryBuilder {
	if err := rb.registry.RegisterProvider(provider); err != nil {
		rb.errs = append(rb.errs, err)
	}
	return rb
}

// Build returns the registry or the first registration error
func (rb *RegistryBuilder) Build() (*Registry, error) {
	if err := errors.Join(rb.errs...); err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	return rb.registry, nil
}
