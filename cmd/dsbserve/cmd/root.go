// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd implements the dsbserve commands.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/config"
	"github.com/magpierre/datacomm/internal/filter"
	"github.com/magpierre/datacomm/internal/log"
	"github.com/magpierre/datacomm/provider"
)

var scope = log.RegisterScope("cmd", "dsbserve commands")

// args holds the flags shared by all commands. Flags that were set on the
// command line override the configuration file.
type args struct {
	configFile string
	logOptions *log.Options

	kind        string
	path        string
	table       string
	fileID      string
	columns     []string
	limit       int64
	timeout     time.Duration
	filter      string
	script      string
	sort        []string
	formatted   bool
	minPushSize int
	keys        string
}

// GetRootCmd returns the root of the command tree.
func GetRootCmd(argv []string) *cobra.Command {
	a := &args{logOptions: log.DefaultOptions()}
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "dsbserve",
		Short:         "Serve tabular data to windowed clients",
		Long:          "dsbserve loads a CSV, Parquet, JSON, bolt or Delta Sharing table and serves it row window by row window over JSON-RPC.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			var err error
			if cfg, err = a.config(c.Flags()); err != nil {
				return err
			}
			return log.Configure(a.mergedLogOptions(c.Flags(), cfg))
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = log.Sync()
		},
	}
	root.SetArgs(argv)

	a.logOptions.AttachCobraFlags(root)
	a.bindFlags(root.PersistentFlags())

	current := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(current),
		newExportCmd(current),
		newSchemaCmd(current),
		newTablesCmd(current),
	)
	return root
}

func (a *args) bindFlags(pf *pflag.FlagSet) {
	pf.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	pf.StringVar(&a.kind, "kind", "", "source kind: csv, parquet, json, bolt or delta; detected from the file when empty")
	pf.StringVarP(&a.path, "source", "s", "", "data file, bolt database or Delta Sharing profile")
	pf.StringVar(&a.table, "table", "", "bolt table name or Delta Sharing table as share.schema.table")
	pf.StringVar(&a.fileID, "file-id", "", "Delta Sharing file id; the first file when empty")
	pf.StringSliceVar(&a.columns, "columns", nil, "columns to load, all when empty")
	pf.Int64Var(&a.limit, "limit", 0, "maximum number of rows to load, unlimited when 0")
	pf.DurationVar(&a.timeout, "timeout", 0, "timeout of Delta Sharing requests")
	pf.StringVar(&a.filter, "filter", "", "filter expression, e.g. 'age > 30 AND city = Oslo'")
	pf.StringVar(&a.script, "script", "", "Go boolean expression over row, e.g. 'Num(row[\"age\"]) > 30'")
	pf.StringArrayVar(&a.sort, "sort", nil, "sort order \"column [asc|desc]\", repeatable")
	pf.BoolVar(&a.formatted, "formatted", false, "send cells as formatted strings")
	pf.IntVar(&a.minPushSize, "min-push-size", 0, "rows pushed after a reset before the client asks")
	pf.StringVar(&a.keys, "keys", "", "row key generator: sequential or ulid")
}

// config loads the configuration file and overlays the flags that were
// set. Commands validate the result, as not every command needs a source.
func (a *args) config(flags *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if a.configFile != "" {
		var err error
		if cfg, err = config.Load(a.configFile); err != nil {
			return nil, err
		}
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("kind", func() { cfg.Source.Kind = a.kind })
	set("source", func() { cfg.Source.Path = a.path })
	set("table", func() { cfg.Source.Table = a.table })
	set("file-id", func() { cfg.Source.FileID = a.fileID })
	set("columns", func() { cfg.Source.Columns = a.columns })
	set("limit", func() { cfg.Source.Limit = a.limit })
	set("timeout", func() { cfg.Source.Timeout = a.timeout })
	set("filter", func() { cfg.Filter = a.filter })
	set("script", func() { cfg.Script = a.script })
	set("sort", func() { cfg.Sort = a.sort })
	set("formatted", func() { cfg.Formatted = a.formatted })
	set("min-push-size", func() { cfg.MinPushSize = a.minPushSize })
	set("keys", func() { cfg.Keys = a.keys })
	return cfg, nil
}

func (a *args) mergedLogOptions(flags *pflag.FlagSet, cfg *config.Config) *log.Options {
	o := cfg.LogOptions()
	if flags.Changed("log_output_level") {
		o.OutputLevels = a.logOptions.OutputLevels
	}
	if flags.Changed("log_target") {
		o.OutputPaths = a.logOptions.OutputPaths
	}
	if flags.Changed("log_as_json") {
		o.JSONEncoding = a.logOptions.JSONEncoding
	}
	return o
}

// rowFilter compiles the configured filter against the source columns.
func rowFilter(cfg *config.Config, columns []string) (datatable.Filter, error) {
	if cfg.Script != "" {
		s, err := filter.CompileScript(cfg.Script)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return filter.ParseExpression(cfg.Filter, columns)
}

func sortOrders(specs []string) ([]provider.SortOrder, error) {
	orders := make([]provider.SortOrder, 0, len(specs))
	for _, s := range specs {
		o, err := datatable.ParseSortOrder(s)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// printer formats counts for humans.
var printer = message.NewPrinter(language.English)

func countRows(n int) string {
	return printer.Sprintf("%d rows", n)
}

func requireSource(cfg *config.Config) error {
	if cfg.Source.Path == "" {
		return fmt.Errorf("%w: no source given, use --source or a config file", config.ErrInvalid)
	}
	return nil
}
