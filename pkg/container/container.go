// Package container implements the C5 dependency container: a type-indexed
// service registry with singleton, transient and instance lifetimes.
//
// Lookups are keyed by interface type (reflect.Type), not concrete type, so
// that pkg/dispatcher depends only on the interfaces it needs and never on
// a process-global singleton. Grounded on the named-map + sync.RWMutex
// discipline of marmos91/dittofs's pkg/registry/registry.go, generalized
// from string-keyed named resources to reflect.Type-keyed lookup.
package container

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
)

// Lifetime controls how a registration's factory is invoked.
type Lifetime int

const (
	// Singleton: the factory runs at most once, under a lock, and the
	// result is memoised for every subsequent lookup.
	Singleton Lifetime = iota
	// Transient: the factory runs on every lookup; nothing is cached.
	Transient
	// Instance: a pre-built value was registered directly; lookup returns
	// it as-is.
	Instance
)

type entry struct {
	lifetime Lifetime
	factory  func(*Container) (any, error)
	mu       sync.Mutex
	instance any
	built    bool
}

// Container is the sole mechanism by which the dispatcher obtains C1-C4;
// registrations are immutable once the process lifespan has started
// (callers are expected to finish all Register* calls before the first
// MustResolve).
type Container struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
}

// New returns an empty container.
func New() *Container {
	return &Container{entries: make(map[reflect.Type]*entry)}
}

// RegisterSingleton registers a factory for interface type T, invoked at
// most once. T is inferred from the generic type parameter, e.g.
// RegisterSingleton[gns3.Client](c, func(*Container) (any, error) {...}).
func RegisterSingleton[T any](c *Container, factory func(*Container) (T, error)) {
	register[T](c, Singleton, func(c *Container) (any, error) { return factory(c) })
}

// RegisterTransient registers a factory for interface type T, invoked on
// every Resolve call.
func RegisterTransient[T any](c *Container, factory func(*Container) (T, error)) {
	register[T](c, Transient, func(c *Container) (any, error) { return factory(c) })
}

// RegisterInstance registers a pre-built value directly.
func RegisterInstance[T any](c *Container, value T) {
	t := typeOf[T]()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[t] = &entry{lifetime: Instance, instance: value, built: true}
}

func register[T any](c *Container, lifetime Lifetime, factory func(*Container) (any, error)) {
	t := typeOf[T]()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[t] = &entry{lifetime: lifetime, factory: factory}
}

// Resolve looks up T. A lookup of an unregistered interface is a
// programming bug, not a runtime condition (spec §4.5), so Resolve returns
// an error only for factory failures; a missing registration panics via
// errs.Fatal-style termination through MustResolve. Resolve itself is kept
// for call sites (tests) that want to assert the error instead of exiting
// the process.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	t := typeOf[T]()

	c.mu.RLock()
	e, ok := c.entries[t]
	c.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("container: no registration for %s", t)
	}

	switch e.lifetime {
	case Instance:
		return e.instance.(T), nil
	case Transient:
		v, err := e.factory(c)
		if err != nil {
			return zero, err
		}
		return v.(T), nil
	default: // Singleton
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.built {
			v, err := e.factory(c)
			if err != nil {
				return zero, err
			}
			e.instance = v
			e.built = true
		}
		return e.instance.(T), nil
	}
}

// MustResolve resolves T or terminates the process: a missing registration
// is a programming error per spec §4.5/§8 testable property 6, not
// something a caller can recover from.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		errs.Fatal("dependency container: %v", err)
	}
	return v
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
