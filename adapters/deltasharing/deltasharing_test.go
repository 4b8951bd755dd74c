package deltasharing

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	tables []delta_sharing.Table
	files  []string
	loaded []string
	err    error
}

func (f *fakeBackend) listTables(context.Context) ([]delta_sharing.Table, error) {
	return f.tables, f.err
}

func (f *fakeBackend) listFiles(context.Context, delta_sharing.Table) ([]string, error) {
	return f.files, nil
}

func (f *fakeBackend) loadArrow(_ context.Context, _ delta_sharing.Table, fileID string) (arrow.Table, error) {
	f.loaded = append(f.loaded, fileID)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "city", Type: arrow.BinaryTypes.String},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Lund", "Oslo", "Riga"}, nil)
	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec}), nil
}

func newFake() *fakeBackend {
	return &fakeBackend{
		tables: []delta_sharing.Table{
			{Share: "s", Schema: "geo", Name: "cities"},
			{Share: "a", Schema: "x", Name: "y"},
		},
		files: []string{"f1", "f2"},
	}
}

func TestParseTableName(t *testing.T) {
	n, err := ParseTableName("share.schema.table")
	require.NoError(t, err)
	assert.Equal(t, TableName{"share", "schema", "table"}, n)
	assert.Equal(t, "share.schema.table", n.String())

	for _, bad := range []string{"", "a.b", "a..c", "a.b.c.d"} {
		_, err := ParseTableName(bad)
		require.ErrorIs(t, err, ErrInvalidTableName, bad)
	}
}

func TestListTables(t *testing.T) {
	c := &Client{b: newFake()}
	names, err := c.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TableName{{"a", "x", "y"}, {"s", "geo", "cities"}}, names)

	files, err := c.Files(context.Background(), TableName{"s", "geo", "cities"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, files)

	broken := &Client{b: &fakeBackend{err: errors.New("unreachable")}}
	_, err = broken.ListTables(context.Background())
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	fake := newFake()
	c := &Client{b: fake}
	name := TableName{"s", "geo", "cities"}

	ds, err := c.Load(context.Background(), name, LoadOptions{})
	require.NoError(t, err)
	defer ds.Release()
	assert.Equal(t, []string{"f1"}, fake.loaded)
	assert.Equal(t, 3, ds.RowCount())
	assert.Equal(t, "s.geo.cities", ds.Metadata()["table"])

	ds2, err := c.Load(context.Background(), name, LoadOptions{FileID: "f2", Columns: []string{"city"}, Limit: 2})
	require.NoError(t, err)
	defer ds2.Release()
	assert.Equal(t, 2, ds2.RowCount())
	assert.Equal(t, 1, ds2.ColumnCount())
	v, err := ds2.Cell(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", v.Raw)

	_, err = c.Load(context.Background(), name, LoadOptions{FileID: "f9"})
	require.ErrorIs(t, err, ErrFileNotFound)
	_, err = c.Load(context.Background(), TableName{"s", "geo", "rivers"}, LoadOptions{})
	require.ErrorIs(t, err, ErrTableNotFound)

	fake.files = nil
	_, err = c.Load(context.Background(), name, LoadOptions{})
	require.ErrorIs(t, err, ErrFileNotFound)
}
