// Package di provides a small lazy service container with typed tokens.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves registered services by name.
type ServiceRegistry interface {
	Get(name string) any
}

// Container is a ServiceRegistry that also accepts registrations.
type Container interface {
	ServiceRegistry
	Register(name string, value any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type entry struct {
	factory func(ServiceRegistry) any
	value   any
	built   bool
	once    sync.Once
}

type container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

// Register stores a ready-made value.
func (c *container) Register(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{value: value, built: true}
}

// RegisterFactory stores a factory invoked on first Get.
func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{factory: factory}
}

// Get resolves a service, building it on first access. Panics for unknown
// names since that is always a wiring bug.
func (c *container) Get(name string) any {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}
	if e.built {
		return e.value
	}
	e.once.Do(func() {
		e.value = e.factory(c)
	})
	return e.value
}

// Token is a typed service key.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the registry key.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service. Optional services whose factory
// returned nil resolve to the zero value of T.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	raw := sr.Get(token.name)
	if raw == nil {
		var zero T
		return zero
	}
	v, ok := raw.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", token.name))
	}
	return v
}
