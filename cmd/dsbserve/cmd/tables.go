package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/magpierre/datacomm/adapters/deltasharing"
	"github.com/magpierre/datacomm/internal/config"
	"github.com/magpierre/datacomm/internal/loader"
)

func newTablesCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a Delta Sharing profile, or the files of --table",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			conf := cfg()
			if err := requireSource(conf); err != nil {
				return err
			}
			client, err := deltasharing.NewClientFromFile(conf.Source.Path)
			if err != nil {
				return err
			}
			return listTables(c.Context(), client, conf.Source, c.OutOrStdout())
		},
	}
}

func listTables(ctx context.Context, client *deltasharing.Client, src config.Source, w io.Writer) error {
	if src.Table == "" {
		tables, err := client.ListTables(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintln(w, t)
		}
		return nil
	}

	name, err := deltasharing.ParseTableName(src.Table)
	if err != nil {
		return err
	}
	files, err := client.Files(ctx, name, src.Timeout)
	if err != nil {
		return err
	}
	for _, id := range files {
		fmt.Fprintln(w, id)
	}
	return nil
}

func newSchemaCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the columns and size of the source",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) (err error) {
			conf := cfg()
			if err := requireSource(conf); err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			ds, release, err := loader.Load(c.Context(), conf.Source)
			if err != nil {
				return err
			}
			defer func() {
				if rerr := release(); rerr != nil {
					err = multierror.Append(err, rerr)
				}
			}()

			w := c.OutOrStdout()
			for i := 0; i < ds.ColumnCount(); i++ {
				name, err := ds.ColumnName(i)
				if err != nil {
					return err
				}
				dt, err := ds.ColumnType(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-24s %s\n", name, dt)
			}
			fmt.Fprintln(w, countRows(ds.RowCount()))
			meta := ds.Metadata()
			for _, k := range slices.Sorted(maps.Keys(meta)) {
				fmt.Fprintf(w, "%s: %v\n", k, meta[k])
			}
			return nil
		},
	}
}
