// Package container is a small service container with named registrations
// and lazily constructed singletons.
package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/timzifer/cqlreg/internal/argument"
)

var (
	// ErrNotFound is returned by the GetRequired helpers for unregistered services.
	ErrNotFound = errors.New("service not found")
	// ErrInvalidArgument is returned when a required argument is missing.
	ErrInvalidArgument = argument.ErrInvalid
)

// Factory constructs a service. It may resolve other services from p.
type Factory func(p *Provider) (any, error)

type key struct {
	typ  reflect.Type
	name string
}

func (k key) String() string {
	if k.name == "" {
		return k.typ.String()
	}
	return fmt.Sprintf("%s[%s]", k.typ, k.name)
}

type registration struct {
	factory  Factory
	instance any
	isValue  bool
}

// Collection gathers registrations before the provider is built. The last
// registration for a type and name wins.
type Collection struct {
	mu    sync.Mutex
	regs  map[key]registration
	items map[reflect.Type]any
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{
		regs:  make(map[key]registration),
		items: make(map[reflect.Type]any),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (c *Collection) add(k key, r registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[k] = r
}

// Contains reports whether a registration exists for T under name.
func Contains[T any](c *Collection, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.regs[key{typ: typeOf[T](), name: name}]
	return ok
}

// AddSingleton registers the unnamed singleton factory for T.
func AddSingleton[T any](c *Collection, factory func(*Provider) (T, error)) error {
	if err := argument.NotNil("factory", factory); err != nil {
		return err
	}
	c.add(key{typ: typeOf[T]()}, registration{factory: wrap(factory)})
	return nil
}

// AddNamedSingleton registers a singleton factory for T under name.
func AddNamedSingleton[T any](c *Collection, name string, factory func(*Provider) (T, error)) error {
	if err := argument.First(
		argument.NotEmpty("name", name),
		argument.NotNil("factory", factory),
	); err != nil {
		return err
	}
	c.add(key{typ: typeOf[T](), name: name}, registration{factory: wrap(factory)})
	return nil
}

// AddInstance registers an already constructed value as the unnamed T.
func AddInstance[T any](c *Collection, value T) error {
	if err := argument.NotNil("value", value); err != nil {
		return err
	}
	c.add(key{typ: typeOf[T]()}, registration{instance: value, isValue: true})
	return nil
}

// Ensure returns the collection-scoped item of type T, creating it with create
// on first use. Items are shared state for registration helpers, such as an
// options registry, and are also resolvable as unnamed T from the provider.
func Ensure[T any](c *Collection, create func() T) T {
	typ := typeOf[T]()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.items[typ]; ok {
		return existing.(T)
	}
	value := create()
	c.items[typ] = value
	if _, ok := c.regs[key{typ: typ}]; !ok {
		c.regs[key{typ: typ}] = registration{instance: value, isValue: true}
	}
	return value
}

func wrap[T any](factory func(*Provider) (T, error)) Factory {
	return func(p *Provider) (any, error) {
		return factory(p)
	}
}

// Build freezes the current registrations into a provider. Registrations added
// to the collection afterwards are not visible to it.
func (c *Collection) Build() *Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &Provider{entries: make(map[key]*entry, len(c.regs))}
	for k, r := range c.regs {
		e := &entry{key: k, reg: r}
		if r.isValue {
			e.value = r.instance
			e.done = true
		}
		p.entries[k] = e
	}
	return p
}
