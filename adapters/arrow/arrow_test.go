package arrow

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/datacomm/datatable"
)

var day = time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)

// twoChunkTable returns a table of five rows split over two records.
func twoChunkTable(t *testing.T) arrow.Table {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "active", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "joined", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	add := func(name string, age int32, score float64, active bool, offset int) {
		b.Field(0).(*array.StringBuilder).Append(name)
		b.Field(1).(*array.Int32Builder).Append(age)
		if score < 0 {
			b.Field(2).AppendNull()
		} else {
			b.Field(2).(*array.Float64Builder).Append(score)
		}
		b.Field(3).(*array.BooleanBuilder).Append(active)
		b.Field(4).(*array.Date32Builder).Append(arrow.Date32FromTime(day.AddDate(0, 0, offset)))
	}

	add("anna", 31, 7.5, true, 0)
	add("bert", 9, -1, false, 1)
	first := b.NewRecord()
	defer first.Release()

	add("carla", 45, 9, true, 2)
	add("dan", 31, 3.25, false, 3)
	add("eva", 22, 6, true, 4)
	second := b.NewRecord()
	defer second.Release()

	table := array.NewTableFromRecords(schema, []arrow.Record{first, second})
	t.Cleanup(table.Release)
	return table
}

func TestNewFromArrowTable(t *testing.T) {
	ds, err := NewFromArrowTable(twoChunkTable(t))
	require.NoError(t, err)
	defer ds.Release()

	require.Equal(t, 5, ds.RowCount())
	require.Equal(t, 5, ds.ColumnCount())

	name, err := ds.ColumnName(1)
	require.NoError(t, err)
	assert.Equal(t, "age", name)
	dt, err := ds.ColumnType(4)
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeDate, dt)

	// row 3 lives in the second chunk
	row, err := ds.Row(3)
	require.NoError(t, err)
	assert.Equal(t, "dan", row[0].Raw)
	assert.Equal(t, int64(31), row[1].Raw)
	assert.Equal(t, 3.25, row[2].Raw)
	assert.Equal(t, false, row[3].Raw)
	assert.Equal(t, "2024-05-20", row[4].Formatted)

	cell, err := ds.Cell(1, 2)
	require.NoError(t, err)
	assert.True(t, cell.IsNull)

	_, err = ds.Cell(5, 0)
	require.ErrorIs(t, err, datatable.ErrInvalidRow)
	_, err = ds.Cell(0, 9)
	require.ErrorIs(t, err, datatable.ErrInvalidColumn)
	_, err = ds.ColumnName(-1)
	require.ErrorIs(t, err, datatable.ErrInvalidColumn)

	_, err = NewFromArrowTable(nil)
	require.ErrorIs(t, err, datatable.ErrNoDataSource)
}

func TestTakeAndProject(t *testing.T) {
	table := twoChunkTable(t)
	ds, err := NewFromArrowTable(table)
	require.NoError(t, err)
	defer ds.Release()

	sub, err := ds.Take([]int{4, 0})
	require.NoError(t, err)
	defer sub.Release()
	require.Equal(t, 2, sub.RowCount())
	v, err := sub.Cell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "eva", v.Raw)
	v, err = sub.Cell(1, 4)
	require.NoError(t, err)
	assert.Equal(t, day, v.Raw)

	projected, err := Project(table, []string{"score", "name"}, 3)
	require.NoError(t, err)
	defer projected.Release()
	pds, err := NewFromArrowTable(projected)
	require.NoError(t, err)
	defer pds.Release()
	require.Equal(t, 3, pds.RowCount())
	require.Equal(t, 2, pds.ColumnCount())
	v, err = pds.Cell(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "carla", v.Raw)

	_, err = Project(table, []string{"missing"}, 0)
	require.ErrorIs(t, err, datatable.ErrColumnNotFound)
}

func TestParquetRoundTrip(t *testing.T) {
	ds, err := NewFromArrowTable(twoChunkTable(t))
	require.NoError(t, err)
	defer ds.Release()

	path := filepath.Join(t.TempDir(), "people.parquet")
	require.NoError(t, ExportRows(ds, []int{2, 1}, FormatParquet, path))

	loaded, err := LoadParquetFile(context.Background(), path, nil, 0)
	require.NoError(t, err)
	defer loaded.Release()
	require.Equal(t, 2, loaded.RowCount())
	assert.Equal(t, "parquet", loaded.Metadata()["format"])

	row, err := loaded.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "carla", row[0].Raw)
	assert.Equal(t, int64(45), row[1].Raw)
	assert.Equal(t, day.AddDate(0, 0, 2), row[4].Raw)

	row, err = loaded.Row(1)
	require.NoError(t, err)
	assert.True(t, row[2].IsNull)

	names, err := LoadParquetFile(context.Background(), path, []string{"name"}, 1)
	require.NoError(t, err)
	defer names.Release()
	assert.Equal(t, 1, names.RowCount())
	assert.Equal(t, 1, names.ColumnCount())

	_, err = LoadParquetFile(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"), nil, 0)
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	ds, err := NewFromArrowTable(twoChunkTable(t))
	require.NoError(t, err)
	defer ds.Release()

	table, err := FromDataSource(ds, []int{0, 1})
	require.NoError(t, err)
	defer table.Release()

	var buf bytes.Buffer
	require.NoError(t, Write(table, FormatCSV, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,age,score,active,joined", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "anna,31,7.5,true,"))
	assert.True(t, strings.HasPrefix(lines[2], "bert,9,,false,"))
}

func TestWriteJSON(t *testing.T) {
	ds, err := NewFromArrowTable(twoChunkTable(t))
	require.NoError(t, err)
	defer ds.Release()

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, ExportRows(ds, []int{1}, FormatJSON, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &records))
	require.Len(t, records, 1)
	assert.Equal(t, map[string]interface{}{
		"name":   "bert",
		"age":    float64(9),
		"score":  nil,
		"active": false,
		"joined": "2024-05-18",
	}, records[0])
}

func TestFormats(t *testing.T) {
	f, err := FormatFromPath("/tmp/x.PARQUET")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)
	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", f.String())

	_, err = ParseFormat("xlsx")
	require.ErrorIs(t, err, ErrUnknownFormat)
	require.ErrorIs(t, Write(nil, ExportFormat(9), &bytes.Buffer{}), ErrUnknownFormat)
}

func TestFromDataSourceTypeMismatch(t *testing.T) {
	ds := &stringsAsInts{}
	_, err := FromDataSource(ds, nil)
	require.ErrorIs(t, err, datatable.ErrTypeMismatch)
}

// stringsAsInts declares an integer column holding text.
type stringsAsInts struct{}

func (stringsAsInts) RowCount() int                              { return 1 }
func (stringsAsInts) ColumnCount() int                           { return 1 }
func (stringsAsInts) ColumnName(int) (string, error)             { return "n", nil }
func (stringsAsInts) ColumnType(int) (datatable.DataType, error) { return datatable.TypeInt, nil }
func (s stringsAsInts) Cell(int, int) (datatable.Value, error) {
	return datatable.NewValue("seven", datatable.TypeInt), nil
}
func (s stringsAsInts) Row(r int) ([]datatable.Value, error) {
	v, err := s.Cell(r, 0)
	return []datatable.Value{v}, err
}
func (stringsAsInts) Metadata() datatable.Metadata { return nil }
