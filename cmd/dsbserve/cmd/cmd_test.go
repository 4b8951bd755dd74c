package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	csvadapter "github.com/magpierre/datacomm/adapters/csv"
	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/config"
)

const people = `name,age,city
Alice,31,Oslo
Bob,25,Bergen
Carol,42,Oslo
Dave,35,Trondheim
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, argv ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := GetRootCmd(append(argv, "--log_output_level", "all:none"))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func column(t *testing.T, ds datatable.DataSource, name string) []string {
	t.Helper()
	col, err := datatable.ColumnIndex(ds, name)
	require.NoError(t, err)
	out := make([]string, ds.RowCount())
	for i := range out {
		v, err := ds.Cell(i, col)
		require.NoError(t, err)
		out[i] = v.Formatted
	}
	return out
}

func TestExportFiltersSortsAndWindows(t *testing.T) {
	src := writeFile(t, "people.csv", people)
	dst := filepath.Join(t.TempDir(), "out.csv")

	out, err := run(t, "export", "-s", src, "--filter", "age > 30", "--sort", "age desc", "--out", dst)
	require.NoError(t, err)
	require.Contains(t, out, "exported 3 rows")

	ds, err := csvadapter.NewFromFile(dst, csvadapter.DefaultConfig())
	require.NoError(t, err)
	defer ds.Release()
	require.Equal(t, []string{"Carol", "Dave", "Alice"}, column(t, ds, "name"))

	_, err = run(t, "export", "-s", src, "--sort", "name", "--offset", "1", "--count", "2", "--out", dst)
	require.NoError(t, err)
	ds2, err := csvadapter.NewFromFile(dst, csvadapter.DefaultConfig())
	require.NoError(t, err)
	defer ds2.Release()
	require.Equal(t, []string{"Bob", "Carol"}, column(t, ds2, "name"))
}

func TestExportWithScriptToJSON(t *testing.T) {
	src := writeFile(t, "people.csv", people)
	dst := filepath.Join(t.TempDir(), "oslo.json")

	out, err := run(t, "export", "-s", src, "--script", `Str(row["city"]) == "Oslo"`, "--out", dst)
	require.NoError(t, err)
	require.Contains(t, out, "exported 2 rows")
	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Contains(t, string(content), "Carol")
	require.NotContains(t, string(content), "Bob")
}

func TestExportErrors(t *testing.T) {
	src := writeFile(t, "people.csv", people)

	_, err := run(t, "export", "-s", src)
	require.ErrorIs(t, err, config.ErrInvalid)
	_, err = run(t, "export", "--out", "x.csv")
	require.ErrorIs(t, err, config.ErrInvalid)
	_, err = run(t, "export", "-s", src, "--filter", "salary > 1", "--out", filepath.Join(t.TempDir(), "x.csv"))
	require.ErrorIs(t, err, datatable.ErrColumnNotFound)
	_, err = run(t, "export", "-s", src, "--keys", "uuid", "--out", "x.csv")
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestSchema(t *testing.T) {
	src := writeFile(t, "people.csv", people)
	out, err := run(t, "schema", "-s", src)
	require.NoError(t, err)
	require.Contains(t, out, "age")
	require.Contains(t, out, "Int")
	require.Contains(t, out, "4 rows")
	require.Contains(t, out, "format: csv")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	file := writeFile(t, "dsbserve.yaml", `
source:
  path: data.parquet
  limit: 10
filter: "age > 1"
minPushSize: 20
`)
	a := &args{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	a.bindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--config", file, "--limit", "5", "--sort", "age desc"}))

	cfg, err := a.config(flags)
	require.NoError(t, err)
	require.Equal(t, "data.parquet", cfg.Source.Path)
	require.Equal(t, int64(5), cfg.Source.Limit)
	require.Equal(t, "age > 1", cfg.Filter)
	require.Equal(t, 20, cfg.MinPushSize)
	require.Equal(t, []string{"age desc"}, cfg.Sort)
	require.Equal(t, config.KeysSequential, cfg.Keys)
}
