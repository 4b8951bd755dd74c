package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	arrowadapter "github.com/magpierre/datacomm/adapters/arrow"
	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/config"
	"github.com/magpierre/datacomm/internal/loader"
	"github.com/magpierre/datacomm/provider"
)

func newExportCmd(cfg func() *config.Config) *cobra.Command {
	var out, format string
	var offset, count int
	c := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered and sorted source to a Parquet, CSV or JSON file",
		Example: "  dsbserve export -s trips.parquet --filter 'distance > 10' --sort 'fare desc' --count 100 --out top.csv",
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			conf := cfg()
			if err := requireSource(conf); err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			if out == "" {
				return fmt.Errorf("%w: --out is required", config.ErrInvalid)
			}
			var f arrowadapter.ExportFormat
			var err error
			if format != "" {
				f, err = arrowadapter.ParseFormat(format)
			} else {
				f, err = arrowadapter.FormatFromPath(out)
			}
			if err != nil {
				return err
			}
			return export(c.Context(), conf, exportTarget{path: out, format: f, offset: offset, count: count}, c.OutOrStdout())
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "", "output file")
	c.Flags().StringVar(&format, "format", "", "parquet, csv or json; taken from the output extension when empty")
	c.Flags().IntVar(&offset, "offset", 0, "first row of the filtered and sorted view to export")
	c.Flags().IntVar(&count, "count", 0, "number of rows to export, all when 0")
	return c
}

type exportTarget struct {
	path   string
	format arrowadapter.ExportFormat
	offset int
	count  int
}

func export(ctx context.Context, conf *config.Config, target exportTarget, w io.Writer) (err error) {
	ds, release, err := loader.Load(ctx, conf.Source)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			err = multierror.Append(err, rerr)
		}
	}()

	rows, err := selectRows(ctx, ds, conf, target.offset, target.count)
	if err != nil {
		return err
	}
	if err := arrowadapter.ExportRows(ds, rows, target.format, target.path); err != nil {
		return err
	}
	fmt.Fprintf(w, "exported %s to %s (%s)\n", countRows(len(rows)), target.path, target.format)
	return nil
}

// selectRows returns the source indices of the requested window of the
// filtered and sorted view, in view order.
func selectRows(ctx context.Context, ds datatable.DataSource, conf *config.Config, offset, count int) ([]int, error) {
	table, err := datatable.NewTableProvider(ds)
	if err != nil {
		return nil, err
	}
	f, err := rowFilter(conf, table.Columns())
	if err != nil {
		return nil, err
	}
	orders, err := sortOrders(conf.Sort)
	if err != nil {
		return nil, err
	}

	limit := provider.UnboundedLimit
	if count > 0 {
		limit = count
	}
	var filterPtr *datatable.Filter
	if f != nil {
		filterPtr = &f
	}
	seq, err := table.Fetch(ctx, provider.NewRangeQuery[*datatable.Row](offset, limit, orders, nil, filterPtr))
	if err != nil {
		return nil, err
	}
	rows := []int{}
	for r := range seq {
		rows = append(rows, r.Index)
	}
	return rows, nil
}
