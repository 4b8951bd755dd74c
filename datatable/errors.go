package datatable

import "errors"

// Errors returned by data sources, the table provider and the adapters.
// Callers match them with errors.Is; most are wrapped with the offending
// name or index.
var (
	// ErrInvalidColumn reports a column index outside the source.
	ErrInvalidColumn = errors.New("column index out of range")

	// ErrInvalidRow reports a row index outside the source.
	ErrInvalidRow = errors.New("row index out of range")

	// ErrInvalidFilter wraps parse and evaluation failures of row filters.
	ErrInvalidFilter = errors.New("invalid row filter")

	// ErrTypeMismatch reports a cell that does not hold its column type.
	ErrTypeMismatch = errors.New("cell does not match column type")

	ErrNoDataSource = errors.New("no data source")

	// ErrEmptyData is returned by loaders given no rows or no columns.
	ErrEmptyData = errors.New("no rows or columns to load")

	// ErrColumnNotFound reports a column name the source does not have.
	ErrColumnNotFound = errors.New("unknown column")

	// ErrInvalidSortColumn reports a sort order on an unknown column.
	ErrInvalidSortColumn = errors.New("cannot sort by column")
)
