// Package di provides a small lazy dependency injection container shared by
// the bounded-context modules.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves services by key.
type ServiceRegistry interface {
	Get(key string) any
}

// Container registers instances and lazy factories.
type Container interface {
	ServiceRegistry
	Register(key string, value any)
	RegisterFactory(key string, factory func(ServiceRegistry) any)
	Has(key string) bool
}

type container struct {
	mu        sync.Mutex
	instances map[string]any
	factories map[string]func(ServiceRegistry) any
	resolving map[string]bool
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		instances: make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
		resolving: make(map[string]bool),
	}
}

func (c *container) Register(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[key] = value
}

func (c *container) RegisterFactory(key string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[key] = factory
}

func (c *container) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.instances[key]
	if !ok {
		_, ok = c.factories[key]
	}
	return ok
}

// Get returns the instance registered under key, building it from its factory
// on first use. Unknown keys and dependency cycles panic: both are wiring bugs.
func (c *container) Get(key string) any {
	c.mu.Lock()
	if v, ok := c.instances[key]; ok {
		c.mu.Unlock()
		return v
	}
	factory, ok := c.factories[key]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: service %q not registered", key))
	}
	if c.resolving[key] {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: dependency cycle while resolving %q", key))
	}
	c.resolving[key] = true
	c.mu.Unlock()

	v := factory(c)

	c.mu.Lock()
	delete(c.resolving, key)
	if existing, ok := c.instances[key]; ok {
		v = existing
	} else {
		c.instances[key] = v
	}
	c.mu.Unlock()
	return v
}
