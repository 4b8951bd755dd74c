package provider

import (
	"context"
	"iter"
)

// FetchCallback returns the items of a query window.
type FetchCallback[T, F any] func(ctx context.Context, q Query[T, F]) (iter.Seq[T], error)

// CountCallback returns the number of items a query would return, ignoring
// its window.
type CountCallback[T, F any] func(ctx context.Context, q Query[T, F]) (int, error)

// BackEndDataProvider delegates windowing, sorting and filtering to a pair of
// callbacks, typically backed by an external store.
type BackEndDataProvider[T, F any] struct {
	Listeners[T]

	fetch FetchCallback[T, F]
	count CountCallback[T, F]
	idFn  func(T) any
}

// NewBackEndDataProvider returns a back-end provider. The fetch callback must
// honour offset, limit, sort orders and filter of the query.
func NewBackEndDataProvider[T, F any](fetch FetchCallback[T, F], count CountCallback[T, F]) (*BackEndDataProvider[T, F], error) {
	if fetch == nil || count == nil {
		return nil, ErrNilCallback
	}
	return &BackEndDataProvider[T, F]{fetch: fetch, count: count}, nil
}

// NewEmptyDataProvider returns a back-end provider without items.
func NewEmptyDataProvider[T, F any]() *BackEndDataProvider[T, F] {
	return &BackEndDataProvider[T, F]{
		fetch: func(context.Context, Query[T, F]) (iter.Seq[T], error) {
			return func(func(T) bool) {}, nil
		},
		count: func(context.Context, Query[T, F]) (int, error) {
			return 0, nil
		},
	}
}

// SetIdentity sets the function used by ID.
func (p *BackEndDataProvider[T, F]) SetIdentity(fn func(T) any) {
	p.idFn = fn
}

// IsInMemory implements DataProvider.
func (p *BackEndDataProvider[T, F]) IsInMemory() bool { return false }

// ID implements DataProvider.
func (p *BackEndDataProvider[T, F]) ID(item T) any {
	if p.idFn == nil {
		return item
	}
	return p.idFn(item)
}

// Size implements DataProvider.
func (p *BackEndDataProvider[T, F]) Size(ctx context.Context, q Query[T, F]) (int, error) {
	return p.count(ctx, q)
}

// Fetch implements DataProvider.
func (p *BackEndDataProvider[T, F]) Fetch(ctx context.Context, q Query[T, F]) (iter.Seq[T], error) {
	return p.fetch(ctx, q)
}
