package communicator

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/magpierre/datacomm/provider"
)

// source is a data provider bound to a communicator together with its
// current filter, with the filter type erased.
type source[T any] interface {
	isInMemory() bool
	id(item T) any
	size(ctx context.Context) (int, error)
	fetch(ctx context.Context, window Range, backEnd []provider.SortOrder, inMemory provider.Comparator[T]) ([]T, error)
	addListener(l provider.Listener[T]) provider.Registration
	unwrap() any
}

type binding[T, F any] struct {
	p         provider.DataProvider[T, F]
	filter    F
	hasFilter bool
}

func (b *binding[T, F]) filterPtr() *F {
	if !b.hasFilter {
		return nil
	}
	f := b.filter
	return &f
}

func (b *binding[T, F]) isInMemory() bool { return b.p.IsInMemory() }

func (b *binding[T, F]) id(item T) any { return b.p.ID(item) }

func (b *binding[T, F]) unwrap() any { return b.p }

func (b *binding[T, F]) addListener(l provider.Listener[T]) provider.Registration {
	return b.p.AddDataProviderListener(l)
}

func (b *binding[T, F]) size(ctx context.Context) (int, error) {
	q := provider.NewRangeQuery[T](0, provider.UnboundedLimit, nil, nil, b.filterPtr())
	return b.p.Size(ctx, q)
}

// fetch returns the items of window. In-memory providers produce every
// matching item, so the window is cut out here after sorting.
func (b *binding[T, F]) fetch(ctx context.Context, window Range, backEnd []provider.SortOrder, inMemory provider.Comparator[T]) ([]T, error) {
	if b.p.IsInMemory() {
		q := provider.NewRangeQuery[T](0, provider.UnboundedLimit, nil, inMemory, b.filterPtr())
		seq, err := b.p.Fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		// the window comes from the client, so it does not size allocations
		var items []T
		i := 0
		for item := range seq {
			if i >= window.End {
				break
			}
			if i >= window.Start {
				items = append(items, item)
			}
			i++
		}
		return items, nil
	}

	q := provider.NewRangeQuery[T](window.Start, window.Length(), backEnd, inMemory, b.filterPtr())
	seq, err := b.p.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// FilterSlot replaces the filter of the provider it was issued for. It
// fails with ErrFilterSlotInvalid once another provider has been bound.
type FilterSlot[F any] func(filter F) error

// SetDataProvider binds p to c, replacing the current provider, and returns
// a slot for changing the filter applied to p.
//
// All client side data is dropped: the next cycle sends a reset and pushes
// the first MinPushSize rows.
func SetDataProvider[T, F any](c *DataCommunicator[T], p provider.DataProvider[T, F], initialFilter *F) (FilterSlot[F], error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	b := &binding[T, F]{p: p}
	if initialFilter != nil {
		b.filter, b.hasFilter = *initialFilter, true
	}
	c.bind(b)

	return func(filter F) error {
		if c.source != source[T](b) {
			return ErrFilterSlotInvalid
		}
		if b.hasFilter && reflect.DeepEqual(b.filter, filter) {
			return nil
		}
		b.filter, b.hasFilter = filter, true
		scope.Debugf("filter changed to %s", describe(filter))
		c.Reset()
		return nil
	}, nil
}

func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	if d, ok := v.(interface{ Description() string }); ok {
		return d.Description()
	}
	return fmt.Sprintf("%T", v)
}
