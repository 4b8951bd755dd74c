package arrow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/magpierre/datacomm/datatable"
)

// arrowTypeOf maps a datatable type to the arrow type used when building
// tables. Types without a direct arrow counterpart are written as strings.
func arrowTypeOf(dt datatable.DataType) arrow.DataType {
	switch dt {
	case datatable.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case datatable.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case datatable.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case datatable.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case datatable.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ns
	case datatable.TypeBinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// Schema builds the arrow schema of ds.
func Schema(ds datatable.DataSource) (*arrow.Schema, error) {
	fields := make([]arrow.Field, ds.ColumnCount())
	for i := range fields {
		name, err := ds.ColumnName(i)
		if err != nil {
			return nil, err
		}
		dt, err := ds.ColumnType(i)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: name, Type: arrowTypeOf(dt), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// FromDataSource copies rows of ds into a new arrow table. A nil rows slice
// copies every row in source order. The caller releases the table.
func FromDataSource(ds datatable.DataSource, rows []int) (arrow.Table, error) {
	if ds == nil {
		return nil, datatable.ErrNoDataSource
	}
	schema, err := Schema(ds)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = make([]int, ds.RowCount())
		for i := range rows {
			rows[i] = i
		}
	}

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	for _, r := range rows {
		values, err := ds.Row(r)
		if err != nil {
			return nil, err
		}
		for col, v := range values {
			if err := appendValue(b.Field(col), v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", r, schema.Field(col).Name, err)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec}), nil
}

// Take returns a new data source holding the given rows of s.
func (s *DataSource) Take(rows []int) (*DataSource, error) {
	table, err := FromDataSource(s, rows)
	if err != nil {
		return nil, err
	}
	defer table.Release()
	return NewFromArrowTable(table)
}

func appendValue(b array.Builder, v datatable.Value) error {
	if v.IsNull {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.StringBuilder:
		if s, ok := v.Raw.(string); ok {
			b.Append(s)
		} else {
			b.Append(v.Formatted)
		}
	case *array.Int64Builder:
		n, err := asInt(v)
		if err != nil {
			return err
		}
		b.Append(n)
	case *array.Float64Builder:
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		b.Append(f)
	case *array.BooleanBuilder:
		t, err := asBool(v)
		if err != nil {
			return err
		}
		b.Append(t)
	case *array.Date32Builder:
		t, err := asTime(v, time.DateOnly)
		if err != nil {
			return err
		}
		b.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, err := asTime(v, time.RFC3339Nano)
		if err != nil {
			return err
		}
		b.Append(arrow.Timestamp(t.UnixNano()))
	case *array.BinaryBuilder:
		if raw, ok := v.Raw.([]byte); ok {
			b.Append(raw)
		} else {
			b.Append([]byte(v.Formatted))
		}
	default:
		return fmt.Errorf("%w: unsupported builder %T", datatable.ErrTypeMismatch, b)
	}
	return nil
}

func asInt(v datatable.Value) (int64, error) {
	switch n := v.Raw.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	n, err := strconv.ParseInt(v.Formatted, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", datatable.ErrTypeMismatch, v.Formatted)
	}
	return n, nil
}

func asFloat(v datatable.Value) (float64, error) {
	switch n := v.Raw.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	f, err := strconv.ParseFloat(v.Formatted, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", datatable.ErrTypeMismatch, v.Formatted)
	}
	return f, nil
}

func asBool(v datatable.Value) (bool, error) {
	if b, ok := v.Raw.(bool); ok {
		return b, nil
	}
	b, err := strconv.ParseBool(v.Formatted)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", datatable.ErrTypeMismatch, v.Formatted)
	}
	return b, nil
}

func asTime(v datatable.Value, layout string) (time.Time, error) {
	if t, ok := v.Raw.(time.Time); ok {
		return t, nil
	}
	t, err := time.Parse(layout, v.Formatted)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a time", datatable.ErrTypeMismatch, v.Formatted)
	}
	return t, nil
}
