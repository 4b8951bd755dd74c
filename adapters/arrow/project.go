package arrow

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/magpierre/datacomm/datatable"
)

// Project returns a table holding the named columns, in the order given,
// and at most limit rows. No columns keeps every column and a limit <= 0
// keeps every row. The result must be released by the caller; it shares
// buffers with table.
func Project(table arrow.Table, columns []string, limit int64) (arrow.Table, error) {
	schema := table.Schema()

	var fields []arrow.Field
	var cols []arrow.Column
	if len(columns) == 0 {
		fields = schema.Fields()
		for i := 0; i < int(table.NumCols()); i++ {
			cols = append(cols, *table.Column(i))
		}
	} else {
		for _, name := range columns {
			idx := schema.FieldIndices(name)
			if len(idx) == 0 {
				return nil, fmt.Errorf("%w: %s", datatable.ErrColumnNotFound, name)
			}
			fields = append(fields, schema.Field(idx[0]))
			cols = append(cols, *table.Column(idx[0]))
		}
	}

	rows := table.NumRows()
	if limit > 0 && limit < rows {
		for i, col := range cols {
			var chunks []arrow.Array
			var count int64
			for _, chunk := range col.Data().Chunks() {
				if count >= limit {
					break
				}
				remaining := limit - count
				if int64(chunk.Len()) <= remaining {
					chunk.Retain()
					chunks = append(chunks, chunk)
					count += int64(chunk.Len())
					continue
				}
				chunks = append(chunks, array.NewSlice(chunk, 0, remaining))
				count += remaining
			}
			chunked := arrow.NewChunked(col.DataType(), chunks)
			cols[i] = *arrow.NewColumn(col.Field(), chunked)
			chunked.Release()
			for _, c := range chunks {
				c.Release()
			}
		}
		rows = limit
	}

	md := schema.Metadata()
	return array.NewTable(arrow.NewSchema(fields, &md), cols, rows), nil
}
