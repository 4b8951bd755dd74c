package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/datacomm/adapters/boltdb"
	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/config"
)

const profile = `{"shareCredentialsVersion": 1, "endpoint": "https://example.com/delta-sharing/", "bearerToken": "t"}`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		path    string
		content string
		want    FileType
	}{
		{"a.csv", "", FileTypeCSV},
		{"a.TSV", "", FileTypeCSV},
		{"a.parquet", "", FileTypeParquet},
		{"a.db", "", FileTypeBolt},
		{"a.json", `[{"a": 1}]`, FileTypeJSON},
		{"a.share", profile, FileTypeDeltaSharingProfile},
		{"a.txt", `{"endpoint": "x"}`, FileTypeJSON},
		{"a.xlsx", "", FileTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFileType(tt.path, []byte(tt.content)), tt.path)
	}
	assert.Equal(t, config.SourceDelta, FileTypeDeltaSharingProfile.Kind())
	assert.Empty(t, FileTypeUnknown.Kind())
}

func TestLoadCSV(t *testing.T) {
	path := write(t, "people.csv", "name,age\nanna,31\nbert,9\ncarla,45\n")
	ds, release, err := Load(context.Background(), config.Source{Path: path, Columns: []string{"age"}, Limit: 2})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 2, ds.RowCount())
	names, err := datatable.ColumnNames(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, names)
	assert.Equal(t, "csv", ds.Metadata()["format"])
}

func TestLoadJSON(t *testing.T) {
	path := write(t, "people.json", `[{"name": "anna", "age": 31}, {"name": "bert", "age": 9}]`)
	ds, release, err := Load(context.Background(), config.Source{Kind: config.SourceJSON, Path: path})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 2, ds.RowCount())
	v, err := ds.Cell(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v.Raw)
	assert.Equal(t, "json", ds.Metadata()["format"])
}

func TestLoadBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.db")
	s, err := boltdb.Open(path)
	require.NoError(t, err)
	tbl, err := s.Create("kv", []boltdb.Column{{Name: "k", Type: datatable.TypeString}})
	require.NoError(t, err)
	_, err = tbl.Append([]datatable.Value{datatable.NewValue("x", datatable.TypeString)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ds, release, err := Load(context.Background(), config.Source{Kind: config.SourceBolt, Path: path, Table: "kv"})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.RowCount())
	require.NoError(t, release())
}

func TestLoadErrors(t *testing.T) {
	_, _, err := Load(context.Background(), config.Source{Path: write(t, "a.xlsx", "x")})
	require.ErrorIs(t, err, ErrUnsupported)

	_, _, err = Load(context.Background(), config.Source{Path: filepath.Join(t.TempDir(), "gone.csv")})
	require.Error(t, err)

	_, _, err = Load(context.Background(), config.Source{Kind: "xml", Path: "x"})
	require.ErrorIs(t, err, ErrUnsupported)

	_, _, err = Load(context.Background(), config.Source{Path: write(t, "p.share", profile), Table: "not-a-table"})
	require.Error(t, err)
}
