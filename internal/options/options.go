// Package options implements generic functional options.
//
// Public packages alias Option[*Config] for their own config type and build
// options with New, NoError or Named.
package options

import "fmt"

// Option configures a target of type T.
type Option[T any] interface {
	apply(T) error
}

// Func is an Option backed by a function.
type Func[T any] struct {
	name      string
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	if err := f.applyFunc(target); err != nil {
		if f.name != "" {
			return fmt.Errorf("option %s: %w", f.name, err)
		}

		return err
	}

	return nil
}

// Name returns the option name, empty for anonymous options.
func (f *Func[T]) Name() string { return f.name }

// New creates an option that may reject its input.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// Named creates an option whose errors are prefixed with name.
func Named[T any](name string, fn func(T) error) *Func[T] {
	return &Func[T]{name: name, applyFunc: fn}
}

// NoError creates an option that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Apply applies opts in order and stops at the first error. Nil options are
// skipped.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
