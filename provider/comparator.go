package provider

import (
	"cmp"
	"slices"
)

// Comparator orders two items. It returns a negative number when a sorts
// before b, a positive number when a sorts after b and zero otherwise.
type Comparator[T any] func(a, b T) int

// ThenComparing returns a comparator that falls back to next when c reports
// a tie. A nil receiver yields next.
func (c Comparator[T]) ThenComparing(next Comparator[T]) Comparator[T] {
	if c == nil {
		return next
	}
	if next == nil {
		return c
	}
	return func(a, b T) int {
		if r := c(a, b); r != 0 {
			return r
		}
		return next(a, b)
	}
}

// Reversed returns the inverse ordering of c.
func (c Comparator[T]) Reversed() Comparator[T] {
	return func(a, b T) int {
		return c(b, a)
	}
}

// ComparingBy returns a comparator ordering items by the value extracted by
// fn in the given direction.
func ComparingBy[T any, V cmp.Ordered](fn func(T) V, direction SortDirection) Comparator[T] {
	c := Comparator[T](func(a, b T) int {
		return cmp.Compare(fn(a), fn(b))
	})
	if direction == Descending {
		return c.Reversed()
	}
	return c
}

// sortStable sorts items in place with c; a nil comparator leaves the order
// untouched.
func sortStable[T any](items []T, c Comparator[T]) {
	if c == nil {
		return
	}
	slices.SortStableFunc(items, c)
}
