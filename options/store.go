package options

import (
	"fmt"
	"sync"

	"github.com/timzifer/cqlreg/config"
)

type snapshot[T any] struct {
	once  sync.Once
	value T
	err   error
}

// Store materializes options once per name. Names without actions yield the
// zero value of T.
type Store[T any] struct {
	registry *Registry[T]
	conf     *config.Configuration

	mu    sync.Mutex
	cache map[string]*snapshot[T]
}

// Get returns the finalized object for name.
func (s *Store[T]) Get(name string) (T, error) {
	s.mu.Lock()
	snap, ok := s.cache[name]
	if !ok {
		snap = &snapshot[T]{}
		s.cache[name] = snap
	}
	s.mu.Unlock()

	snap.once.Do(func() {
		snap.value, snap.err = s.build(name)
	})
	return snap.value, snap.err
}

// Configuration returns the configuration the store binds from.
func (s *Store[T]) Configuration() *config.Configuration {
	return s.conf
}

func (s *Store[T]) build(name string) (T, error) {
	var value T
	e := s.registry.snapshotEntry(name)
	for _, action := range e.configure {
		if err := action(s.conf, &value); err != nil {
			var zero T
			return zero, fmt.Errorf("configure options %q: %w", name, err)
		}
	}
	for _, fn := range e.post {
		fn(&value)
	}
	for _, fn := range e.validate {
		if err := fn(&value); err != nil {
			var zero T
			return zero, fmt.Errorf("validate options %q: %w", name, err)
		}
	}
	return value, nil
}
