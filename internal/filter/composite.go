package filter

import (
	"fmt"
	"strings"

	"github.com/magpierre/datacomm/datatable"
)

// LogicOp represents a logical operator for combining filters.
type LogicOp int

const (
	// LogicAND requires all filters to pass.
	LogicAND LogicOp = iota
	// LogicOR requires at least one filter to pass.
	LogicOR
)

// String returns the string representation of a LogicOp.
func (op LogicOp) String() string {
	switch op {
	case LogicAND:
		return "AND"
	case LogicOR:
		return "OR"
	default:
		return fmt.Sprintf("unknown(%d)", op)
	}
}

// CompositeFilter combines multiple filters with AND or OR logic.
type CompositeFilter struct {
	// Filters is the list of filters to combine.
	Filters []datatable.Filter

	// Logic specifies how to combine the filters (AND or OR).
	Logic LogicOp
}

// And returns a filter passing rows that pass every non-nil filter. Nested
// AND composites are flattened.
func And(filters ...datatable.Filter) *CompositeFilter {
	return combine(LogicAND, filters)
}

// Or returns a filter passing rows that pass any non-nil filter.
func Or(filters ...datatable.Filter) *CompositeFilter {
	return combine(LogicOR, filters)
}

func combine(op LogicOp, filters []datatable.Filter) *CompositeFilter {
	c := &CompositeFilter{Logic: op}
	for _, f := range filters {
		switch f := f.(type) {
		case nil:
		case *CompositeFilter:
			if f.Logic == op {
				c.Filters = append(c.Filters, f.Filters...)
				continue
			}
			c.Filters = append(c.Filters, f)
		default:
			c.Filters = append(c.Filters, f)
		}
	}
	return c
}

// Combine is a filter combiner for appendable providers: the existing
// filter and the appended one must both pass.
func Combine(existing, appended datatable.Filter) datatable.Filter {
	return And(existing, appended)
}

// Evaluate implements the Filter interface.
func (f *CompositeFilter) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	if len(f.Filters) == 0 {
		return true, nil // Empty filter passes all rows
	}

	switch f.Logic {
	case LogicAND:
		for _, filter := range f.Filters {
			passes, err := filter.Evaluate(row, columnNames)
			if err != nil {
				return false, err
			}
			if !passes {
				return false, nil
			}
		}
		return true, nil

	case LogicOR:
		for _, filter := range f.Filters {
			passes, err := filter.Evaluate(row, columnNames)
			if err != nil {
				return false, err
			}
			if passes {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("%w: unknown logic operator %d", datatable.ErrInvalidFilter, f.Logic)
	}
}

// Description implements the Filter interface.
func (f *CompositeFilter) Description() string {
	switch len(f.Filters) {
	case 0:
		return "empty filter"
	case 1:
		return f.Filters[0].Description()
	}

	descriptions := make([]string, len(f.Filters))
	for i, filter := range f.Filters {
		descriptions[i] = filter.Description()
	}
	return "(" + strings.Join(descriptions, " "+f.Logic.String()+" ") + ")"
}
