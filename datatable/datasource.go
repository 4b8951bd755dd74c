package datatable

import "fmt"

// DataSource provides read-only access to tabular data.
// Implementations must be thread-safe for concurrent reads.
// All methods should return errors rather than panic.
type DataSource interface {
	// RowCount returns the total number of rows in the data source.
	RowCount() int

	// ColumnCount returns the total number of columns in the data source.
	ColumnCount() int

	// ColumnName returns the name of the column at the given index.
	// Returns ErrInvalidColumn if col is out of range.
	ColumnName(col int) (string, error)

	// ColumnType returns the data type of the column at the given index.
	// Returns ErrInvalidColumn if col is out of range.
	ColumnType(col int) (DataType, error)

	// Cell returns the value at the specified row and column.
	// Returns ErrInvalidRow if row is out of range.
	// Returns ErrInvalidColumn if col is out of range.
	Cell(row, col int) (Value, error)

	// Row returns all values for the specified row.
	// Returns ErrInvalidRow if row is out of range.
	Row(row int) ([]Value, error)

	// Metadata returns optional metadata about the data source.
	// Returns an empty Metadata map if no metadata is available.
	Metadata() Metadata
}

// Filter decides whether a row is part of a filtered view.
type Filter interface {
	// Evaluate reports whether the row passes. Values and names are
	// positionally aligned.
	Evaluate(row []Value, columnNames []string) (bool, error)

	// Description returns a human readable form of the filter.
	Description() string
}

// ColumnNames returns the names of all columns of ds.
func ColumnNames(ds DataSource) ([]string, error) {
	names := make([]string, ds.ColumnCount())
	for i := range names {
		name, err := ds.ColumnName(i)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// ColumnIndex returns the index of the named column.
func ColumnIndex(ds DataSource, name string) (int, error) {
	for i := 0; i < ds.ColumnCount(); i++ {
		n, err := ds.ColumnName(i)
		if err != nil {
			return -1, err
		}
		if n == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
}

// AndFilter combines two filters so that a row must pass both. A nil filter
// is treated as absent.
func AndFilter(a, b Filter) Filter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return andFilter{a, b}
}

type andFilter [2]Filter

func (f andFilter) Evaluate(row []Value, columnNames []string) (bool, error) {
	for _, sub := range f {
		ok, err := sub.Evaluate(row, columnNames)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (f andFilter) Description() string {
	return "(" + f[0].Description() + " AND " + f[1].Description() + ")"
}
