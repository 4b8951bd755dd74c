package provider

import "errors"

// Common errors returned by the provider package.
var (
	// ErrNilCallback is returned when a fetch or count callback is nil.
	ErrNilCallback = errors.New("callback cannot be null")

	// ErrNilProvider is returned when a wrapped data provider is nil.
	ErrNilProvider = errors.New("data provider cannot be null")

	// ErrNilFilter is returned when a nil filter is added.
	ErrNilFilter = errors.New("filter cannot be null")

	// ErrNilComparator is returned when a nil comparator is added.
	ErrNilComparator = errors.New("comparator cannot be null")

	// ErrNilCombiner is returned when a filter combiner is nil.
	ErrNilCombiner = errors.New("filter combiner cannot be null")
)
