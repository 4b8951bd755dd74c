// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Predicate tests a single item.
type Predicate[T any] func(T) bool

// ListDataProvider is an in-memory provider backed by a slice.
//
// Fetch ignores the query window and returns every item that passes the
// provider filter and the query filter, sorted by the query comparator and
// then by the provider comparator. Windowing is left to the caller.
type ListDataProvider[T any] struct {
	Listeners[T]

	mu        sync.RWMutex
	items     []T
	sortOrder Comparator[T]
	filter    Predicate[T]
	idFn      func(T) any
}

var _ DataProvider[int, Predicate[int]] = (*ListDataProvider[int])(nil)

// NewListDataProvider returns a provider over items. The slice is used as is;
// call RefreshAll after mutating it.
func NewListDataProvider[T any](items []T) *ListDataProvider[T] {
	if items == nil {
		items = []T{}
	}
	return &ListDataProvider[T]{items: items}
}

// Items returns the backing slice.
func (p *ListDataProvider[T]) Items() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.items
}

// SetItems replaces the backing slice and fires a refresh event.
func (p *ListDataProvider[T]) SetItems(items []T) {
	if items == nil {
		items = []T{}
	}
	p.mu.Lock()
	p.items = items
	p.mu.Unlock()
	p.RefreshAll()
}

// SetIdentity sets the function used by ID. By default an item is its own
// identity, which requires T to be comparable.
func (p *ListDataProvider[T]) SetIdentity(fn func(T) any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idFn = fn
}

// IsInMemory implements DataProvider.
func (p *ListDataProvider[T]) IsInMemory() bool { return true }

// ID implements DataProvider.
func (p *ListDataProvider[T]) ID(item T) any {
	p.mu.RLock()
	fn := p.idFn
	p.mu.RUnlock()
	if fn == nil {
		return item
	}
	return fn(item)
}

// Size implements DataProvider. The window of q is ignored.
func (p *ListDataProvider[T]) Size(_ context.Context, q Query[T, Predicate[T]]) (int, error) {
	return len(p.filtered(q)), nil
}

// Fetch implements DataProvider. The window of q is ignored.
func (p *ListDataProvider[T]) Fetch(_ context.Context, q Query[T, Predicate[T]]) (iter.Seq[T], error) {
	items := p.filtered(q)

	p.mu.RLock()
	sorting := q.InMemorySorting().ThenComparing(p.sortOrder)
	p.mu.RUnlock()
	sortStable(items, sorting)

	return slices.Values(items), nil
}

func (p *ListDataProvider[T]) filtered(q Query[T, Predicate[T]]) []T {
	p.mu.RLock()
	defer p.mu.RUnlock()

	queryFilter, _ := q.Filter()
	out := make([]T, 0, len(p.items))
	for _, item := range p.items {
		// own filter first so query filters never see excluded items
		if p.filter != nil && !p.filter(item) {
			continue
		}
		if queryFilter != nil && !queryFilter(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SortComparator returns the provider comparator, or nil.
func (p *ListDataProvider[T]) SortComparator() Comparator[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortOrder
}

// SetSortComparator replaces the provider comparator. A nil comparator
// removes sorting.
func (p *ListDataProvider[T]) SetSortComparator(c Comparator[T]) {
	p.mu.Lock()
	p.sortOrder = c
	p.mu.Unlock()
	p.RefreshAll()
}

// AddSortComparator appends c as a tie breaker of the current comparator.
func (p *ListDataProvider[T]) AddSortComparator(c Comparator[T]) error {
	if c == nil {
		return ErrNilComparator
	}
	p.SetSortComparator(p.SortComparator().ThenComparing(c))
	return nil
}

// Filter returns the provider filter, or nil.
func (p *ListDataProvider[T]) Filter() Predicate[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

// SetFilter replaces the provider filter. A nil filter removes filtering.
func (p *ListDataProvider[T]) SetFilter(f Predicate[T]) {
	p.mu.Lock()
	p.filter = f
	p.mu.Unlock()
	p.RefreshAll()
}

// AddFilter requires items to pass f in addition to the current filter.
func (p *ListDataProvider[T]) AddFilter(f Predicate[T]) error {
	if f == nil {
		return ErrNilFilter
	}
	p.SetFilter(AndPredicates(p.Filter(), f))
	return nil
}

// ClearFilters removes the provider filter.
func (p *ListDataProvider[T]) ClearFilters() {
	p.SetFilter(nil)
}

// AndPredicates combines two predicates with logical AND. A nil predicate is
// treated as absent.
func AndPredicates[T any](a, b Predicate[T]) Predicate[T] {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(item T) bool {
		return a(item) && b(item)
	}
}

// FilteringBy returns a provider over p that accepts filter values of type Q
// and keeps the items for which predicate holds.
func FilteringBy[T, Q any](p *ListDataProvider[T], predicate func(item T, filter Q) bool) DataProvider[T, Q] {
	return WithConvertedFilter[T, Q, Predicate[T]](p, func(filter Q) Predicate[T] {
		return func(item T) bool {
			return predicate(item, filter)
		}
	})
}

// FilteringByEquals returns a provider over p keeping the items whose value
// equals the filter value.
func FilteringByEquals[T any, V comparable](p *ListDataProvider[T], value func(T) V) DataProvider[T, V] {
	return FilteringBy(p, func(item T, filter V) bool {
		return value(item) == filter
	})
}

// FilteringBySubstring returns a provider over p keeping the items whose
// string value contains the filter string, ignoring case.
func FilteringBySubstring[T any](p *ListDataProvider[T], value func(T) string) DataProvider[T, string] {
	return filteringByFoldedString(p, value, strings.Contains)
}

// FilteringByPrefix returns a provider over p keeping the items whose string
// value starts with the filter string, ignoring case.
func FilteringByPrefix[T any](p *ListDataProvider[T], value func(T) string) DataProvider[T, string] {
	return filteringByFoldedString(p, value, strings.HasPrefix)
}

func filteringByFoldedString[T any](p *ListDataProvider[T], value func(T) string, match func(s, sub string) bool) DataProvider[T, string] {
	return FilteringBy(p, func(item T, filter string) bool {
		// cases.Caser is stateful, so each call gets its own
		fold := cases.Fold()
		return match(fold.String(value(item)), fold.String(filter))
	})
}
