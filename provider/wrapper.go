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
	"sync"
)

// Wrapper is a provider that rewrites queries before handing them to the
// wrapped provider. Identity, refresh events and listeners are those of the
// wrapped provider; the wrapped provider itself is never modified.
type Wrapper[T, F, M any] struct {
	inner DataProvider[T, M]
	adapt func(Query[T, F]) Query[T, M]
}

var _ DataProvider[int, string] = (*Wrapper[int, string, bool])(nil)

func newWrapper[T, F, M any](inner DataProvider[T, M], adapt func(Query[T, F]) Query[T, M]) *Wrapper[T, F, M] {
	return &Wrapper[T, F, M]{inner: inner, adapt: adapt}
}

// Unwrap returns the wrapped provider.
func (w *Wrapper[T, F, M]) Unwrap() DataProvider[T, M] { return w.inner }

// IsInMemory implements DataProvider.
func (w *Wrapper[T, F, M]) IsInMemory() bool { return w.inner.IsInMemory() }

// Size implements DataProvider.
func (w *Wrapper[T, F, M]) Size(ctx context.Context, q Query[T, F]) (int, error) {
	return w.inner.Size(ctx, w.adapt(q))
}

// Fetch implements DataProvider.
func (w *Wrapper[T, F, M]) Fetch(ctx context.Context, q Query[T, F]) (iter.Seq[T], error) {
	return w.inner.Fetch(ctx, w.adapt(q))
}

// ID implements DataProvider.
func (w *Wrapper[T, F, M]) ID(item T) any { return w.inner.ID(item) }

// RefreshItem implements DataProvider.
func (w *Wrapper[T, F, M]) RefreshItem(item T) { w.inner.RefreshItem(item) }

// RefreshAll implements DataProvider.
func (w *Wrapper[T, F, M]) RefreshAll() { w.inner.RefreshAll() }

// AddDataProviderListener implements DataProvider.
func (w *Wrapper[T, F, M]) AddDataProviderListener(l Listener[T]) Registration {
	return w.inner.AddDataProviderListener(l)
}

// WithConvertedFilter returns a provider accepting filters of type F, each
// converted to the filter type M of p.
func WithConvertedFilter[T, F, M any](p DataProvider[T, M], convert func(F) M) DataProvider[T, F] {
	return newWrapper(p, func(q Query[T, F]) Query[T, M] {
		f, ok := q.Filter()
		if !ok {
			var zero M
			return convertQuery(q, zero, false)
		}
		return convertQuery(q, convert(f), true)
	})
}

// ConfigurableFilterDataProvider holds a filter value that is combined with
// the filter of every query.
type ConfigurableFilterDataProvider[T, F any] struct {
	*Wrapper[T, F, F]

	mu         sync.RWMutex
	configured F
	hasFilter  bool
}

// WithConfigurableFilter wraps p with a settable filter. Query filters and the
// configured filter are merged with combine(configured, query).
func WithConfigurableFilter[T, F any](p DataProvider[T, F], combine func(configured, query F) F) (*ConfigurableFilterDataProvider[T, F], error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	if combine == nil {
		return nil, ErrNilCombiner
	}
	c := &ConfigurableFilterDataProvider[T, F]{}
	c.Wrapper = newWrapper(p, func(q Query[T, F]) Query[T, F] {
		c.mu.RLock()
		configured, has := c.configured, c.hasFilter
		c.mu.RUnlock()
		return mergeFilter(q, configured, has, combine)
	})
	return c, nil
}

// SetFilter replaces the configured filter and refreshes listeners.
func (c *ConfigurableFilterDataProvider[T, F]) SetFilter(f F) {
	c.mu.Lock()
	c.configured, c.hasFilter = f, true
	c.mu.Unlock()
	c.RefreshAll()
}

// ClearFilter removes the configured filter and refreshes listeners.
func (c *ConfigurableFilterDataProvider[T, F]) ClearFilter() {
	c.mu.Lock()
	var zero F
	c.configured, c.hasFilter = zero, false
	c.mu.Unlock()
	c.RefreshAll()
}

// AppendableFilterDataProvider is an immutable provider whose filter grows by
// appending: WithFilter returns a new provider and leaves the receiver as is.
type AppendableFilterDataProvider[T, F any] struct {
	*Wrapper[T, F, F]

	inner     DataProvider[T, F]
	combine   func(a, b F) F
	filter    F
	hasFilter bool
}

// NewAppendableFilterDataProvider wraps p. Filters are combined with combine,
// for example a logical AND.
func NewAppendableFilterDataProvider[T, F any](p DataProvider[T, F], combine func(a, b F) F) (*AppendableFilterDataProvider[T, F], error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	if combine == nil {
		return nil, ErrNilCombiner
	}
	var zero F
	return newAppendable(p, combine, zero, false), nil
}

func newAppendable[T, F any](p DataProvider[T, F], combine func(a, b F) F, filter F, has bool) *AppendableFilterDataProvider[T, F] {
	a := &AppendableFilterDataProvider[T, F]{inner: p, combine: combine, filter: filter, hasFilter: has}
	a.Wrapper = newWrapper(p, func(q Query[T, F]) Query[T, F] {
		return mergeFilter(q, a.filter, a.hasFilter, combine)
	})
	return a
}

// WithFilter returns a new provider whose filter is f combined with the
// current filter. Without a current filter f is used unchanged.
func (a *AppendableFilterDataProvider[T, F]) WithFilter(f F) *AppendableFilterDataProvider[T, F] {
	if !a.hasFilter {
		return newAppendable(a.inner, a.combine, f, true)
	}
	return newAppendable(a.inner, a.combine, a.combine(a.filter, f), true)
}

// Filter returns the appended filter and whether one is set.
func (a *AppendableFilterDataProvider[T, F]) Filter() (F, bool) {
	return a.filter, a.hasFilter
}

// SortingBy returns a provider that appends orders to the back-end sort
// orders of every query.
func SortingBy[T, F any](p DataProvider[T, F], orders ...SortOrder) DataProvider[T, F] {
	defaults := append([]SortOrder(nil), orders...)
	return newWrapper(p, func(q Query[T, F]) Query[T, F] {
		q.sortOrders = append(q.SortOrders(), defaults...)
		return q
	})
}

// SortingByComparator returns a provider that appends c to the in-memory
// sorting of every query.
func SortingByComparator[T, F any](p DataProvider[T, F], c Comparator[T]) DataProvider[T, F] {
	return newWrapper(p, func(q Query[T, F]) Query[T, F] {
		q.inMemorySorting = q.inMemorySorting.ThenComparing(c)
		return q
	})
}

func mergeFilter[T, F any](q Query[T, F], extra F, hasExtra bool, combine func(a, b F) F) Query[T, F] {
	if !hasExtra {
		return q
	}
	qf, ok := q.Filter()
	if !ok {
		return q.withFilter(extra, true)
	}
	return q.withFilter(combine(extra, qf), true)
}
