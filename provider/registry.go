package provider

import (
	"fmt"
	"sort"
	"sync"
)

// registration couples a driver factory with the settings it understands
type registration struct {
	factory DriverFactory
	config  []ConfigField
}

// ProviderRegistry manages all gateway driver implementations
type ProviderRegistry struct {
	drivers map[string]registration
	mu      sync.RWMutex
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		drivers: make(map[string]registration),
	}
}

// Register adds a driver factory to the registry
func (r *ProviderRegistry) Register(name string, factory DriverFactory, config []ConfigField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = registration{factory: factory, config: config}
}

// Get retrieves a driver factory by name
func (r *ProviderRegistry) Get(name string) (DriverFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.drivers[name]
	if !exists {
		return nil, fmt.Errorf("payment driver '%s' is %w", name, ErrDriverNotRegistered)
	}

	return reg.factory, nil
}

// New builds a driver for the given invoice
func (r *ProviderRegistry) New(name string, invoice *Invoice, settings map[string]string) (Driver, error) {
	factory, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	return factory(invoice, settings)
}

// RequiredConfig returns the configuration fields a driver understands
func (r *ProviderRegistry) RequiredConfig(name string) ([]ConfigField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.drivers[name]
	if !exists {
		return nil, fmt.Errorf("payment driver '%s' is %w", name, ErrDriverNotRegistered)
	}

	fields := make([]ConfigField, len(reg.config))
	copy(fields, reg.config)
	return fields, nil
}

// Names returns all registered driver names in sorted order
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// DefaultRegistry is the global default provider registry
var DefaultRegistry = NewProviderRegistry()

// Register registers a driver with the default registry
func Register(name string, factory DriverFactory, config []ConfigField) {
	DefaultRegistry.Register(name, factory, config)
}

// Get retrieves a driver factory from the default registry
func Get(name string) (DriverFactory, error) {
	return DefaultRegistry.Get(name)
}

// New builds a driver from the default registry
func New(name string, invoice *Invoice, settings map[string]string) (Driver, error) {
	return DefaultRegistry.New(name, invoice, settings)
}
