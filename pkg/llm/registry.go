package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/ocxlabs/ocx/pkg/errors"
)

var (
	// ErrNoDefaultProvider indicates no default provider has been set.
	ErrNoDefaultProvider = errors.New("no default provider configured")

	// ErrInvalidProvider indicates the provider implementation is invalid.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrFactoryNotFound indicates no factory is registered for the provider.
	ErrFactoryNotFound = errors.New("provider factory not found")
)

// ProviderFactory creates a Provider from credentials.
type ProviderFactory func(creds Credentials) (Provider, error)

// Registry manages LLM providers for one session. Initialization is
// two-phase: factories are registered first, then providers are activated
// with credentials for whatever is configured. Construct one registry at
// session start and pass it to the handlers that need it.
// Safe for concurrent use.
type Registry struct {
	mu              sync.RWMutex
	factories       map[string]ProviderFactory
	providers       map[string]Provider
	defaultProvider string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		providers: make(map[string]Provider),
	}
}

// RegisterFactory registers a provider factory without instantiating it.
// Registering the same name twice overwrites the previous factory.
func (r *Registry) RegisterFactory(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Activate instantiates a provider from its registered factory. Activating
// an already-active provider is a no-op.
func (r *Registry) Activate(name string, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, exists := r.factories[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrFactoryNotFound, name)
	}

	if _, exists := r.providers[name]; exists {
		return nil
	}

	provider, err := factory(creds)
	if err != nil {
		return fmt.Errorf("failed to activate provider %s: %w", name, err)
	}

	r.providers[name] = provider
	return nil
}

// Register adds an already-constructed provider.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return ErrInvalidProvider
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("%w: provider name cannot be empty", ErrInvalidProvider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	return nil
}

// Get retrieves an active provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[name]
	if !exists {
		return nil, &pkgerrors.NotFoundError{Resource: "provider", ID: name}
	}
	return p, nil
}

// GetDefault returns the default provider.
func (r *Registry) GetDefault() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultProvider == "" {
		return nil, ErrNoDefaultProvider
	}
	p, exists := r.providers[r.defaultProvider]
	if !exists {
		return nil, &pkgerrors.NotFoundError{Resource: "provider", ID: r.defaultProvider}
	}
	return p, nil
}

// SetDefault sets the default provider. The provider must be active.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return &pkgerrors.NotFoundError{Resource: "provider", ID: name}
	}
	r.defaultProvider = name
	return nil
}

// IsActive reports whether the provider has been activated.
func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[name]
	return exists
}

// ListFactories returns all registered factory names, sorted.
func (r *Registry) ListFactories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.factories)
}

// ListActive returns all activated provider names, sorted.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.providers)
}

// ForModel returns the first active provider whose capabilities include the
// model ID, trying providers in the given order first and the remaining
// active providers after.
func (r *Registry) ForModel(modelID string, preferredProviders ...string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tried := make(map[string]bool, len(r.providers))
	ordered := make([]Provider, 0, len(r.providers))
	for _, name := range preferredProviders {
		if p, ok := r.providers[name]; ok && !tried[name] {
			tried[name] = true
			ordered = append(ordered, p)
		}
	}
	for _, name := range sortedKeys(r.providers) {
		if !tried[name] {
			ordered = append(ordered, r.providers[name])
		}
	}

	for _, p := range ordered {
		if p.Capabilities().HasModel(modelID) {
			return p, nil
		}
	}
	return nil, &pkgerrors.NotFoundError{Resource: "model", ID: modelID}
}

// CreateWithRetry wraps an active provider with retry logic.
func (r *Registry) CreateWithRetry(name string, config RetryConfig) (Provider, error) {
	provider, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return NewRetryableProvider(provider, config), nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
