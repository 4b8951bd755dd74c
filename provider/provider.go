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

// DataProvider is a source of items of type T that can be restricted with
// filters of type F.
//
// In-memory providers (IsInMemory returns true) ignore the window of a query
// in Fetch: they produce every matching item and leave windowing to the
// caller. Back-end providers honour offset, limit, sort orders and filter,
// and Size reports the filtered count.
//
// A provider may be shared by several consumers, so Size and Fetch must be
// safe to call repeatedly with different queries.
type DataProvider[T, F any] interface {
	// IsInMemory reports whether the caller must window the fetched items.
	IsInMemory() bool

	// Size returns the number of items the query would return, ignoring
	// offset and limit.
	Size(ctx context.Context, q Query[T, F]) (int, error)

	// Fetch returns the items for the query. The sequence is finite.
	Fetch(ctx context.Context, q Query[T, F]) (iter.Seq[T], error)

	// ID returns the identity of item. Two items with equal identities are
	// the same logical object. The returned value must be comparable.
	ID(item T) any

	// RefreshItem notifies listeners that a single item has changed.
	RefreshItem(item T)

	// RefreshAll notifies listeners that the whole collection has changed.
	RefreshAll()

	// AddDataProviderListener registers a listener for change events.
	AddDataProviderListener(l Listener[T]) Registration
}

// DataChangeEvent is fired when the content of a provider changes.
type DataChangeEvent[T any] struct {
	// Item is set for single item refreshes.
	Item T
	// ItemRefresh reports whether Item holds the refreshed item; when false
	// the whole collection has changed.
	ItemRefresh bool
}

// Listener receives data change events.
type Listener[T any] func(DataChangeEvent[T])

// Registration removes a previously added listener.
type Registration func()

// Remove unregisters the listener. It is safe to call on a nil Registration.
func (r Registration) Remove() {
	if r != nil {
		r()
	}
}

// Listeners is an embeddable listener registry implementing the event part of
// DataProvider.
type Listeners[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener[T]
	order     []int
}

// AddDataProviderListener registers l and returns its registration.
func (ls *Listeners[T]) AddDataProviderListener(l Listener[T]) Registration {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.listeners == nil {
		ls.listeners = make(map[int]Listener[T])
	}
	id := ls.nextID
	ls.nextID++
	ls.listeners[id] = l
	ls.order = append(ls.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			defer ls.mu.Unlock()
			delete(ls.listeners, id)
			for i, v := range ls.order {
				if v == id {
					ls.order = append(ls.order[:i], ls.order[i+1:]...)
					break
				}
			}
		})
	}
}

// RefreshAll fires a collection change event.
func (ls *Listeners[T]) RefreshAll() {
	ls.fire(DataChangeEvent[T]{})
}

// RefreshItem fires a single item change event.
func (ls *Listeners[T]) RefreshItem(item T) {
	ls.fire(DataChangeEvent[T]{Item: item, ItemRefresh: true})
}

func (ls *Listeners[T]) fire(e DataChangeEvent[T]) {
	ls.mu.Lock()
	snapshot := make([]Listener[T], 0, len(ls.order))
	for _, id := range ls.order {
		snapshot = append(snapshot, ls.listeners[id])
	}
	ls.mu.Unlock()

	for _, l := range snapshot {
		l(e)
	}
}

// IdentityID is the default identity: the item itself.
func IdentityID[T any](item T) any {
	return item
}
