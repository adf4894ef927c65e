// Package options implements the functional options taken by the plugin
// loader and merger.
//
// A package declares its option type as an alias and builds options with
// New or NoError:
//
//	type Option = options.Option[*Config]
//
//	func WithSkipCorrupt() Option {
//	    return options.NoError(func(c *Config) { c.skipCorrupt = true })
//	}
package options

// Option configures a value of type T.
type Option[T any] interface {
	apply(T) error
}

type optionFunc[T any] func(T) error

func (f optionFunc[T]) apply(target T) error {
	return f(target)
}

// New wraps a configuration function that may reject its input.
func New[T any](fn func(T) error) Option[T] {
	return optionFunc[T](fn)
}

// NoError wraps a configuration function that cannot fail.
func NoError[T any](fn func(T)) Option[T] {
	return optionFunc[T](func(target T) error {
		fn(target)
		return nil
	})
}

// Apply applies opts to target in order and stops at the first error. Nil
// options are skipped.
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
