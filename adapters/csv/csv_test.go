package csv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/datacomm/datatable"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b,c", ','},
		{"a;b;c", ';'},
		{"a\tb\tc", '\t'},
		{"a|b|c", '|'},
		{"a;b,c", ','},
		{"single", ','},
		{"", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDelimiter([]byte(tt.line)), "%q", tt.line)
	}
	assert.Equal(t, "semicolon", DelimiterName(';'))
	assert.Equal(t, "#", DelimiterName('#'))
}

func TestNewFromReaderInfersTypes(t *testing.T) {
	data := "name;age;score\nanna;31;7.5\nbert;9;\ncarla;45;9\n"
	ds, err := NewFromReader(strings.NewReader(data), DefaultConfig())
	require.NoError(t, err)
	defer ds.Release()

	require.Equal(t, 3, ds.RowCount())
	require.Equal(t, 3, ds.ColumnCount())
	assert.Equal(t, "semicolon", ds.Metadata()["delimiter"])

	types := make([]datatable.DataType, 3)
	for i := range types {
		types[i], err = ds.ColumnType(i)
		require.NoError(t, err)
	}
	assert.Equal(t, []datatable.DataType{datatable.TypeString, datatable.TypeInt, datatable.TypeFloat}, types)

	row, err := ds.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "bert", row[0].Raw)
	assert.Equal(t, int64(9), row[1].Raw)
	assert.True(t, row[2].IsNull)
}

func TestNewFromFileSmallChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\na,1\nb,2\nc,3\nd,4\ne,5\n"), 0o644))

	config := DefaultConfig()
	config.ChunkSize = 2
	ds, err := NewFromFile(path, config)
	require.NoError(t, err)
	defer ds.Release()

	require.Equal(t, 5, ds.RowCount())
	v, err := ds.Cell(4, 0)
	require.NoError(t, err)
	assert.Equal(t, "e", v.Raw)
	assert.Equal(t, path, ds.Metadata()["path"])

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.csv"), config)
	require.Error(t, err)
}

func TestNewFromReaderEmpty(t *testing.T) {
	_, err := NewFromReader(strings.NewReader(""), DefaultConfig())
	require.Error(t, err)
}
