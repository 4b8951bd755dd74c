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

// Package arrow adapts Apache Arrow tables to datatable.DataSource and
// writes tabular data back out as Parquet, CSV or JSON.
package arrow

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/magpierre/datacomm/datatable"
)

// DataSource is a read-only datatable.DataSource over an arrow.Table.
// Cells are read directly from the table chunks.
type DataSource struct {
	table   arrow.Table
	names   []string
	types   []datatable.DataType
	chunks  [][]arrow.Array
	offsets [][]int
	rows    int
	meta    datatable.Metadata
}

var _ datatable.DataSource = (*DataSource)(nil)

// NewFromArrowTable wraps table. The table is retained until Release.
func NewFromArrowTable(table arrow.Table) (*DataSource, error) {
	if table == nil {
		return nil, datatable.ErrNoDataSource
	}
	table.Retain()

	schema := table.Schema()
	ncols := int(table.NumCols())
	s := &DataSource{
		table:   table,
		names:   make([]string, ncols),
		types:   make([]datatable.DataType, ncols),
		chunks:  make([][]arrow.Array, ncols),
		offsets: make([][]int, ncols),
		rows:    int(table.NumRows()),
		meta:    datatable.Metadata{"format": "arrow"},
	}
	for i := 0; i < ncols; i++ {
		field := schema.Field(i)
		s.names[i] = field.Name
		s.types[i] = dataTypeOf(field.Type)

		offset := 0
		for _, chunk := range table.Column(i).Data().Chunks() {
			if chunk.Len() == 0 {
				continue
			}
			s.chunks[i] = append(s.chunks[i], chunk)
			s.offsets[i] = append(s.offsets[i], offset)
			offset += chunk.Len()
		}
	}
	if md := schema.Metadata(); md.Len() > 0 {
		for i, k := range md.Keys() {
			s.meta[k] = md.Values()[i]
		}
	}
	return s, nil
}

// Release releases the wrapped table.
func (s *DataSource) Release() {
	if s.table != nil {
		s.table.Release()
		s.table = nil
	}
}

// Table returns the wrapped table.
func (s *DataSource) Table() arrow.Table { return s.table }

// RowCount implements datatable.DataSource.
func (s *DataSource) RowCount() int { return s.rows }

// ColumnCount implements datatable.DataSource.
func (s *DataSource) ColumnCount() int { return len(s.names) }

// ColumnName implements datatable.DataSource.
func (s *DataSource) ColumnName(col int) (string, error) {
	if col < 0 || col >= len(s.names) {
		return "", fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}
	return s.names[col], nil
}

// ColumnType implements datatable.DataSource.
func (s *DataSource) ColumnType(col int) (datatable.DataType, error) {
	if col < 0 || col >= len(s.types) {
		return datatable.TypeString, fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}
	return s.types[col], nil
}

// Cell implements datatable.DataSource.
func (s *DataSource) Cell(row, col int) (datatable.Value, error) {
	if row < 0 || row >= s.rows {
		return datatable.Value{}, fmt.Errorf("%w: %d", datatable.ErrInvalidRow, row)
	}
	if col < 0 || col >= len(s.names) {
		return datatable.Value{}, fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}

	offsets := s.offsets[col]
	chunk := sort.Search(len(offsets), func(i int) bool { return offsets[i] > row }) - 1
	return valueAt(s.chunks[col][chunk], row-offsets[chunk], s.types[col]), nil
}

// Row implements datatable.DataSource.
func (s *DataSource) Row(row int) ([]datatable.Value, error) {
	if row < 0 || row >= s.rows {
		return nil, fmt.Errorf("%w: %d", datatable.ErrInvalidRow, row)
	}
	values := make([]datatable.Value, len(s.names))
	for col := range values {
		v, err := s.Cell(row, col)
		if err != nil {
			return nil, err
		}
		values[col] = v
	}
	return values, nil
}

// Metadata implements datatable.DataSource.
func (s *DataSource) Metadata() datatable.Metadata { return s.meta }

// dataTypeOf maps an arrow type to the closest datatable type.
func dataTypeOf(dt arrow.DataType) datatable.DataType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return datatable.TypeInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return datatable.TypeFloat
	case arrow.BOOL:
		return datatable.TypeBool
	case arrow.DATE32, arrow.DATE64:
		return datatable.TypeDate
	case arrow.TIMESTAMP:
		return datatable.TypeTimestamp
	case arrow.BINARY, arrow.LARGE_BINARY:
		return datatable.TypeBinary
	case arrow.DECIMAL128, arrow.DECIMAL256:
		return datatable.TypeDecimal
	case arrow.STRUCT:
		return datatable.TypeStruct
	case arrow.LIST, arrow.LARGE_LIST:
		return datatable.TypeList
	default:
		return datatable.TypeString
	}
}

// valueAt reads position pos of col as a datatable value.
func valueAt(col arrow.Array, pos int, dt datatable.DataType) datatable.Value {
	if col.IsNull(pos) {
		return datatable.NewNullValue(dt)
	}

	var raw interface{}
	switch col.DataType().ID() {
	case arrow.STRING:
		raw = col.(*array.String).Value(pos)
	case arrow.LARGE_STRING:
		raw = col.(*array.LargeString).Value(pos)
	case arrow.BINARY:
		raw = bytes.Clone(col.(*array.Binary).Value(pos))
	case arrow.BOOL:
		raw = col.(*array.Boolean).Value(pos)
	case arrow.INT8:
		raw = int64(col.(*array.Int8).Value(pos))
	case arrow.INT16:
		raw = int64(col.(*array.Int16).Value(pos))
	case arrow.INT32:
		raw = int64(col.(*array.Int32).Value(pos))
	case arrow.INT64:
		raw = col.(*array.Int64).Value(pos)
	case arrow.UINT8:
		raw = int64(col.(*array.Uint8).Value(pos))
	case arrow.UINT16:
		raw = int64(col.(*array.Uint16).Value(pos))
	case arrow.UINT32:
		raw = int64(col.(*array.Uint32).Value(pos))
	case arrow.UINT64:
		raw = int64(col.(*array.Uint64).Value(pos))
	case arrow.FLOAT16:
		raw = float64(col.(*array.Float16).Value(pos).Float32())
	case arrow.FLOAT32:
		raw = float64(col.(*array.Float32).Value(pos))
	case arrow.FLOAT64:
		raw = col.(*array.Float64).Value(pos)
	case arrow.DATE32:
		raw = col.(*array.Date32).Value(pos).ToTime()
	case arrow.DATE64:
		raw = col.(*array.Date64).Value(pos).ToTime()
	case arrow.TIMESTAMP:
		ts := col.(*array.Timestamp)
		raw = ts.Value(pos).ToTime(ts.DataType().(*arrow.TimestampType).Unit)
	case arrow.DECIMAL128:
		raw = col.(*array.Decimal128).Value(pos).BigInt().String()
	default:
		raw = col.ValueStr(pos)
	}
	return datatable.NewValue(raw, dt)
}
