package container

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/timzifer/cqlreg/internal/argument"
)

type entry struct {
	key key
	reg registration

	mu    sync.Mutex
	done  bool
	value any
}

// Provider resolves services registered in a Collection. Each singleton is
// constructed at most once; a failed construction is retried on the next call.
type Provider struct {
	entries map[key]*entry

	mu     sync.Mutex
	built  []*entry
	closed bool
}

// ErrClosed is returned when resolving from a closed provider.
var ErrClosed = errors.New("provider closed")

func (p *Provider) resolve(k key) (any, bool, error) {
	e, ok := p.entries[k]
	if !ok {
		return nil, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.value, true, nil
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, true, ErrClosed
	}
	value, err := e.reg.factory(p)
	if err != nil {
		return nil, true, err
	}
	e.value = value
	e.done = true
	p.mu.Lock()
	p.built = append(p.built, e)
	p.mu.Unlock()
	return value, true, nil
}

func get[T any](p *Provider, name string) (T, bool, error) {
	var zero T
	value, ok, err := p.resolve(key{typ: typeOf[T](), name: name})
	if err != nil || !ok {
		return zero, ok, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false, fmt.Errorf("service %s has unexpected type %T", typeOf[T](), value)
	}
	return typed, true, nil
}

// Get resolves the unnamed T. The boolean is false when nothing is registered.
func Get[T any](p *Provider) (T, bool, error) {
	return get[T](p, "")
}

// GetNamed resolves T registered under name.
func GetNamed[T any](p *Provider, name string) (T, bool, error) {
	if err := argument.NotEmpty("name", name); err != nil {
		var zero T
		return zero, false, err
	}
	return get[T](p, name)
}

// GetRequired resolves the unnamed T and fails with ErrNotFound when absent.
func GetRequired[T any](p *Provider) (T, error) {
	value, ok, err := get[T](p, "")
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", ErrNotFound, typeOf[T]())
	}
	return value, err
}

// GetRequiredNamed resolves T under name and fails with ErrNotFound when absent.
func GetRequiredNamed[T any](p *Provider, name string) (T, error) {
	value, ok, err := GetNamed[T](p, name)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s %q", ErrNotFound, typeOf[T](), name)
	}
	return value, err
}

// Close closes every constructed singleton implementing io.Closer in reverse
// construction order. Instances added with AddInstance are owned by the caller.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	built := p.built
	p.built = nil
	p.mu.Unlock()

	var errs []error
	for i := len(built) - 1; i >= 0; i-- {
		closer, ok := built[i].value.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", built[i].key, err))
		}
	}
	return errors.Join(errs...)
}
