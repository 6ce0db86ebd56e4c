package dispatch

import (
	"fmt"
	"sort"
)

// HandlerFactory creates a handler from configuration parameters
type HandlerFactory func(params map[string]any) (Handler, error)

// HandlerConfig selects a registered handler by name, with its parameters
type HandlerConfig struct {
	Name   string
	Params map[string]any
}

// HandlerRegistry manages the registration and creation of layer handlers
type HandlerRegistry struct {
	factories map[string]HandlerFactory
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		factories: make(map[string]HandlerFactory),
	}
}

// Register adds a handler factory to the registry
func (r *HandlerRegistry) Register(name string, factory HandlerFactory) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("handler factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("handler %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a handler by name with the given parameters
func (r *HandlerRegistry) Create(name string, params map[string]any) (Handler, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown handler: %s", name)
	}

	handler, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler %s: %w", name, err)
	}

	return handler, nil
}

// IsRegistered checks if a handler with the given name is registered
func (r *HandlerRegistry) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// GetRegisteredNames returns the sorted names of all registered handlers
func (r *HandlerRegistry) GetRegisteredNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in imagery and elevation handlers
var DefaultRegistry = NewHandlerRegistry()
