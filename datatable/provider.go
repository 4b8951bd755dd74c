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

package datatable

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/magpierre/datacomm/internal/log"
	"github.com/magpierre/datacomm/provider"
)

var scope = log.RegisterScope("datatable", "tabular data providers")

// TableProvider serves a DataSource as a back-end data provider. Filtering,
// sorting by column and windowing happen here, so the communicator only
// receives the requested rows.
//
// The last filtered and sorted view is cached until RefreshAll or SetSource.
// In-memory comparators of a query are not applied.
type TableProvider struct {
	provider.Listeners[*Row]

	mu      sync.RWMutex
	ds      DataSource
	columns []string
	view    *view
}

type view struct {
	filterKey string
	key       string
	indices   []int
}

var _ provider.DataProvider[*Row, Filter] = (*TableProvider)(nil)

// NewTableProvider returns a provider over ds.
func NewTableProvider(ds DataSource) (*TableProvider, error) {
	p := &TableProvider{}
	if err := p.setSource(ds); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TableProvider) setSource(ds DataSource) error {
	if ds == nil {
		return ErrNoDataSource
	}
	columns, err := ColumnNames(ds)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.ds, p.columns, p.view = ds, columns, nil
	p.mu.Unlock()
	return nil
}

// SetSource replaces the data source and notifies listeners.
func (p *TableProvider) SetSource(ds DataSource) error {
	if err := p.setSource(ds); err != nil {
		return err
	}
	p.Listeners.RefreshAll()
	return nil
}

// Source returns the data source.
func (p *TableProvider) Source() DataSource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ds
}

// Columns returns the column names of the source.
func (p *TableProvider) Columns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.columns)
}

// IsInMemory implements provider.DataProvider.
func (p *TableProvider) IsInMemory() bool { return false }

// ID implements provider.DataProvider. Rows are identified by source index.
func (p *TableProvider) ID(r *Row) any { return r.Index }

// RefreshAll drops the cached view and notifies listeners.
func (p *TableProvider) RefreshAll() {
	p.mu.Lock()
	p.view = nil
	p.mu.Unlock()
	p.Listeners.RefreshAll()
}

// RowAt reads the row at index from the source.
func (p *TableProvider) RowAt(index int) (*Row, error) {
	p.mu.RLock()
	ds, columns := p.ds, p.columns
	p.mu.RUnlock()

	values, err := ds.Row(index)
	if err != nil {
		return nil, err
	}
	return &Row{Index: index, Values: values, Columns: columns}, nil
}

// Size implements provider.DataProvider.
func (p *TableProvider) Size(ctx context.Context, q provider.Query[*Row, Filter]) (int, error) {
	filter, _ := q.Filter()
	// ordering does not change the count, so any cached view of the same
	// filter answers
	p.mu.RLock()
	if p.view != nil && p.view.filterKey == filterKey(filter) {
		n := len(p.view.indices)
		p.mu.RUnlock()
		return n, nil
	}
	p.mu.RUnlock()

	indices, err := p.indices(ctx, filter, nil)
	if err != nil {
		return 0, err
	}
	return len(indices), nil
}

// Fetch implements provider.DataProvider.
func (p *TableProvider) Fetch(ctx context.Context, q provider.Query[*Row, Filter]) (iter.Seq[*Row], error) {
	filter, _ := q.Filter()
	indices, err := p.indices(ctx, filter, q.SortOrders())
	if err != nil {
		return nil, err
	}

	start := min(q.Offset(), len(indices))
	end := min(q.RequestedRangeEnd(), len(indices))
	rows := make([]*Row, 0, end-start)
	for _, index := range indices[start:end] {
		r, err := p.RowAt(index)
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", index, err)
		}
		rows = append(rows, r)
	}
	return slices.Values(rows), nil
}

// indices returns the source indices passing filter, ordered by orders.
func (p *TableProvider) indices(ctx context.Context, filter Filter, orders []provider.SortOrder) ([]int, error) {
	key := viewKey(filter, orders)

	p.mu.RLock()
	if p.view != nil && p.view.key == key {
		indices := p.view.indices
		p.mu.RUnlock()
		return indices, nil
	}
	ds, columns := p.ds, p.columns
	p.mu.RUnlock()

	indices := make([]int, 0, ds.RowCount())
	for i := 0; i < ds.RowCount(); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if filter != nil {
			values, err := ds.Row(i)
			if err != nil {
				return nil, err
			}
			ok, err := filter.Evaluate(values, columns)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFilter, filter.Description(), err)
			}
			if !ok {
				continue
			}
		}
		indices = append(indices, i)
	}

	if err := sortIndices(ds, indices, orders); err != nil {
		return nil, err
	}
	scope.Debugf("view %q has %d rows", key, len(indices))

	p.mu.Lock()
	p.view = &view{filterKey: filterKey(filter), key: key, indices: indices}
	p.mu.Unlock()
	return indices, nil
}

func sortIndices(ds DataSource, indices []int, orders []provider.SortOrder) error {
	if len(orders) == 0 {
		return nil
	}
	cols := make([]int, len(orders))
	for i, o := range orders {
		col, err := ColumnIndex(ds, o.Property)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSortColumn, o.Property)
		}
		cols[i] = col
	}

	var cellErr error
	cell := func(row, col int) Value {
		v, err := ds.Cell(row, col)
		if err != nil && cellErr == nil {
			cellErr = err
		}
		return v
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		for i, o := range orders {
			c := Compare(cell(a, cols[i]), cell(b, cols[i]))
			if o.Direction == provider.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return cellErr
}

func filterKey(filter Filter) string {
	if filter == nil {
		return ""
	}
	return filter.Description()
}

func viewKey(filter Filter, orders []provider.SortOrder) string {
	var b strings.Builder
	b.WriteString(filterKey(filter))
	for _, o := range orders {
		b.WriteString("|")
		b.WriteString(o.String())
	}
	return b.String()
}

// ParseSortOrder parses "column", "column asc" or "column desc".
func ParseSortOrder(s string) (provider.SortOrder, error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1:
		return provider.Asc(fields[0]), nil
	case len(fields) == 2 && strings.EqualFold(fields[1], "asc"):
		return provider.Asc(fields[0]), nil
	case len(fields) == 2 && strings.EqualFold(fields[1], "desc"):
		return provider.Desc(fields[0]), nil
	}
	return provider.SortOrder{}, fmt.Errorf("%w: %q", ErrInvalidSortColumn, s)
}
