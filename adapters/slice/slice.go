// Package slice provides in-memory data sources built from Go values and
// JSON documents.
package slice

import (
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/magpierre/datacomm/datatable"
)

// DataSource is an immutable in-memory table.
type DataSource struct {
	names []string
	types []datatable.DataType
	rows  [][]datatable.Value
	meta  datatable.Metadata
}

var _ datatable.DataSource = (*DataSource)(nil)

// NewFromMaps builds a table from records. Columns are the union of the
// record keys in sorted order; missing keys read as null. Column types are
// inferred from the non-null values: whole JSON numbers become integers and
// RFC 3339 strings timestamps.
func NewFromMaps(records []map[string]interface{}) (*DataSource, error) {
	if len(records) == 0 {
		return nil, datatable.ErrEmptyData
	}

	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	slices.Sort(names)

	s := &DataSource{
		names: names,
		types: make([]datatable.DataType, len(names)),
		rows:  make([][]datatable.Value, len(records)),
		meta:  datatable.Metadata{"format": "memory"},
	}
	for col, name := range names {
		s.types[col] = inferType(records, name)
	}
	for r, rec := range records {
		row := make([]datatable.Value, len(names))
		for col, name := range names {
			v, err := convert(rec[name], s.types[col])
			if err != nil {
				return nil, fmt.Errorf("record %d field %s: %w", r, name, err)
			}
			row[col] = v
		}
		s.rows[r] = row
	}
	return s, nil
}

// NewFromJSON parses an array of objects, or a single object, into a table.
func NewFromJSON(data []byte) (*DataSource, error) {
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		var single map[string]interface{}
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		records = []map[string]interface{}{single}
	}
	return NewFromMaps(records)
}

// NewFromJSONFile reads a JSON file with NewFromJSON.
func NewFromJSONFile(path string) (*DataSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	s, err := NewFromJSON(content)
	if err != nil {
		return nil, err
	}
	s.meta["format"] = "json"
	s.meta["path"] = path
	return s, nil
}

func inferType(records []map[string]interface{}, name string) datatable.DataType {
	dt, found := datatable.TypeString, false
	for _, rec := range records {
		v := rec[name]
		if v == nil {
			continue
		}
		t := typeOf(v)
		switch {
		case !found:
			dt, found = t, true
		case dt == t:
		case dt == datatable.TypeInt && t == datatable.TypeFloat,
			dt == datatable.TypeFloat && t == datatable.TypeInt:
			dt = datatable.TypeFloat
		default:
			return datatable.TypeString
		}
	}
	return dt
}

func typeOf(v interface{}) datatable.DataType {
	switch v := v.(type) {
	case bool:
		return datatable.TypeBool
	case int, int32, int64:
		return datatable.TypeInt
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return datatable.TypeInt
		}
		return datatable.TypeFloat
	case float32:
		return datatable.TypeFloat
	case time.Time:
		return datatable.TypeTimestamp
	case string:
		if _, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return datatable.TypeTimestamp
		}
		return datatable.TypeString
	case []byte:
		return datatable.TypeBinary
	case []interface{}:
		return datatable.TypeList
	case map[string]interface{}:
		return datatable.TypeStruct
	}
	return datatable.TypeString
}

func convert(v interface{}, dt datatable.DataType) (datatable.Value, error) {
	if v == nil {
		return datatable.NewNullValue(dt), nil
	}
	switch dt {
	case datatable.TypeInt:
		switch n := v.(type) {
		case float64:
			return datatable.NewValue(int64(n), dt), nil
		case int:
			return datatable.NewValue(int64(n), dt), nil
		case int32:
			return datatable.NewValue(int64(n), dt), nil
		}
	case datatable.TypeFloat:
		switch n := v.(type) {
		case float32:
			return datatable.NewValue(float64(n), dt), nil
		case int:
			return datatable.NewValue(float64(n), dt), nil
		case int32:
			return datatable.NewValue(float64(n), dt), nil
		case int64:
			return datatable.NewValue(float64(n), dt), nil
		}
	case datatable.TypeTimestamp:
		if s, ok := v.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return datatable.Value{}, fmt.Errorf("%w: %v", datatable.ErrTypeMismatch, err)
			}
			return datatable.NewValue(t, dt), nil
		}
	case datatable.TypeList, datatable.TypeStruct:
		b, err := json.Marshal(v)
		if err != nil {
			return datatable.Value{}, err
		}
		return datatable.Value{Raw: v, Type: dt, Formatted: string(b)}, nil
	case datatable.TypeString:
		if _, ok := v.(string); !ok {
			b, err := json.Marshal(v)
			if err != nil {
				return datatable.Value{}, err
			}
			return datatable.NewValue(string(b), dt), nil
		}
	}
	return datatable.NewValue(v, dt), nil
}

// RowCount implements datatable.DataSource.
func (s *DataSource) RowCount() int { return len(s.rows) }

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
	values, err := s.Row(row)
	if err != nil {
		return datatable.Value{}, err
	}
	if col < 0 || col >= len(values) {
		return datatable.Value{}, fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}
	return values[col], nil
}

// Row implements datatable.DataSource. The returned slice must not be
// modified.
func (s *DataSource) Row(row int) ([]datatable.Value, error) {
	if row < 0 || row >= len(s.rows) {
		return nil, fmt.Errorf("%w: %d", datatable.ErrInvalidRow, row)
	}
	return s.rows[row], nil
}

// Metadata implements datatable.DataSource.
func (s *DataSource) Metadata() datatable.Metadata { return s.meta }
