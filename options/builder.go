package options

import "errors"

// Builder is a fluent view on the actions of one name. Errors are collected
// and reported by Err.
type Builder[T any] struct {
	name     string
	registry *Registry[T]
	errs     []error
}

// Name returns the options name the builder configures.
func (b *Builder[T]) Name() string { return b.name }

// Configure appends a mutator.
func (b *Builder[T]) Configure(fn func(*T)) *Builder[T] {
	return b.record(b.registry.Configure(b.name, fn))
}

// BindConfiguration appends a binding of the section at path.
func (b *Builder[T]) BindConfiguration(path string) *Builder[T] {
	return b.record(b.registry.Bind(b.name, path))
}

// PostConfigure appends a mutator that runs after all Configure and bind actions.
func (b *Builder[T]) PostConfigure(fn func(*T)) *Builder[T] {
	return b.record(b.registry.PostConfigure(b.name, fn))
}

// Validate appends a validation.
func (b *Builder[T]) Validate(fn func(*T) error) *Builder[T] {
	return b.record(b.registry.Validate(b.name, fn))
}

// Err returns every error recorded by the builder.
func (b *Builder[T]) Err() error {
	return errors.Join(b.errs...)
}

func (b *Builder[T]) record(err error) *Builder[T] {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}
