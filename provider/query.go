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

// Package provider defines queries and data providers: the backend side of a
// windowed data transfer to a client-rendered grid.
package provider

import (
	"fmt"
	"math"
)

// UnboundedLimit is the limit of a query that does not restrict the number
// of returned items.
const UnboundedLimit = math.MaxInt32

// SortDirection specifies the direction of sorting.
type SortDirection int

const (
	// Ascending sorts from the smallest to the largest value.
	Ascending SortDirection = iota
	// Descending sorts from the largest to the smallest value.
	Descending
)

// String returns the string representation of a SortDirection.
func (sd SortDirection) String() string {
	switch sd {
	case Ascending:
		return "Ascending"
	case Descending:
		return "Descending"
	default:
		return fmt.Sprintf("Unknown(%d)", sd)
	}
}

// SortOrder is a back-end sort instruction for a single property.
type SortOrder struct {
	// Property is the name of the sorted property, for tabular data a column name.
	Property string
	// Direction is the sort direction.
	Direction SortDirection
}

// Asc returns an ascending sort order for property.
func Asc(property string) SortOrder {
	return SortOrder{Property: property, Direction: Ascending}
}

// Desc returns a descending sort order for property.
func Desc(property string) SortOrder {
	return SortOrder{Property: property, Direction: Descending}
}

// String returns the string representation of a SortOrder.
func (so SortOrder) String() string {
	if so.Direction == Descending {
		return so.Property + " desc"
	}
	return so.Property + " asc"
}

// Query describes a single data request: a window, sort instructions and an
// optional filter. A Query is immutable once constructed.
//
// Nothing ties Offset and Limit to the size of the queried collection; a
// window past the end simply yields fewer items.
type Query[T, F any] struct {
	offset          int
	limit           int
	sortOrders      []SortOrder
	inMemorySorting Comparator[T]
	filter          F
	hasFilter       bool
}

// NewQuery returns a query for all items without sorting or filtering.
func NewQuery[T, F any]() Query[T, F] {
	return Query[T, F]{limit: UnboundedLimit}
}

// NewFilterQuery returns an unbounded query restricted by filter.
func NewFilterQuery[T, F any](filter F) Query[T, F] {
	return Query[T, F]{limit: UnboundedLimit, filter: filter, hasFilter: true}
}

// NewRangeQuery returns a query for the window [offset, offset+limit). A nil
// filter means no filtering.
func NewRangeQuery[T, F any](offset, limit int, sortOrders []SortOrder, inMemorySorting Comparator[T], filter *F) Query[T, F] {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	q := Query[T, F]{
		offset:          offset,
		limit:           limit,
		sortOrders:      append([]SortOrder(nil), sortOrders...),
		inMemorySorting: inMemorySorting,
	}
	if filter != nil {
		q.filter = *filter
		q.hasFilter = true
	}
	return q
}

// Offset returns the index of the first requested item.
func (q Query[T, F]) Offset() int { return q.offset }

// Limit returns the maximum number of requested items.
func (q Query[T, F]) Limit() int { return q.limit }

// RequestedRangeEnd returns the exclusive end index of the requested window.
func (q Query[T, F]) RequestedRangeEnd() int {
	if q.limit >= UnboundedLimit-q.offset {
		return UnboundedLimit
	}
	return q.offset + q.limit
}

// SortOrders returns a copy of the back-end sort orders.
func (q Query[T, F]) SortOrders() []SortOrder {
	return append([]SortOrder(nil), q.sortOrders...)
}

// InMemorySorting returns the in-memory comparator, or nil.
func (q Query[T, F]) InMemorySorting() Comparator[T] { return q.inMemorySorting }

// Filter returns the query filter and whether one is set.
func (q Query[T, F]) Filter() (F, bool) { return q.filter, q.hasFilter }

// withFilter returns a copy of q with its filter replaced.
func (q Query[T, F]) withFilter(filter F, ok bool) Query[T, F] {
	q.filter = filter
	q.hasFilter = ok
	return q
}

// convertQuery maps a query onto another filter type, keeping the window and
// sort state.
func convertQuery[T, F, M any](q Query[T, F], filter M, ok bool) Query[T, M] {
	return Query[T, M]{
		offset:          q.offset,
		limit:           q.limit,
		sortOrders:      q.sortOrders,
		inMemorySorting: q.inMemorySorting,
		filter:          filter,
		hasFilter:       ok,
	}
}
