package datatable

import (
	"github.com/magpierre/datacomm/communicator"
)

// Row is a single row of a DataSource as handed out by TableProvider.
type Row struct {
	// Index is the row position in the source. It is the row identity.
	Index int
	// Values holds the cells, aligned with Columns.
	Values []Value
	// Columns holds the column names.
	Columns []string
}

// Get returns the value of the named column.
func (r *Row) Get(column string) (Value, bool) {
	for i, name := range r.Columns {
		if name == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// Map returns the raw cell values by column name. Nulls map to nil.
func (r *Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Columns))
	for i, name := range r.Columns {
		if i >= len(r.Values) || r.Values[i].IsNull {
			m[name] = nil
			continue
		}
		m[name] = r.Values[i].Raw
	}
	return m
}

// RowGenerator writes the cell values of a row under communicator.DataField.
// With Formatted set, cells are sent as their formatted strings.
type RowGenerator struct {
	Formatted bool
}

var _ communicator.DataGenerator[*Row] = (*RowGenerator)(nil)

// GenerateData implements communicator.DataGenerator.
func (g *RowGenerator) GenerateData(r *Row, out communicator.JSONObject) {
	if !g.Formatted {
		out[communicator.DataField] = r.Map()
		return
	}
	m := make(map[string]interface{}, len(r.Columns))
	for i, name := range r.Columns {
		if i < len(r.Values) && !r.Values[i].IsNull {
			m[name] = r.Values[i].Formatted
		} else {
			m[name] = nil
		}
	}
	out[communicator.DataField] = m
}

// DestroyData implements communicator.DataGenerator. Rows hold no resources.
func (g *RowGenerator) DestroyData(*Row) {}
