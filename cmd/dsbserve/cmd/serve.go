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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/config"
	"github.com/magpierre/datacomm/internal/loader"
	"github.com/magpierre/datacomm/monitoring"
	"github.com/magpierre/datacomm/rpc"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	var transport, listen, metricsListen string
	var allowScripts bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the source to JSON-RPC clients",
		Long: "Serve the source over stdio, TCP or websocket. SIGHUP reloads the source " +
			"and resets every session.",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			conf := cfg()
			if c.Flags().Changed("transport") {
				conf.Transport = transport
			}
			if c.Flags().Changed("listen") {
				conf.Listen = listen
			}
			if c.Flags().Changed("metrics-listen") {
				conf.Metrics.Listen = metricsListen
			}
			if c.Flags().Changed("allow-scripts") {
				conf.AllowScripts = allowScripts
			}
			if err := requireSource(conf); err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, conf)
		},
	}
	c.Flags().StringVar(&transport, "transport", config.TransportStdio, "stdio, tcp or websocket")
	c.Flags().StringVar(&listen, "listen", "localhost:7070", "listen address of the tcp and websocket transports")
	c.Flags().StringVar(&metricsListen, "metrics-listen", "", "address of the Prometheus endpoint, disabled when empty")
	c.Flags().BoolVar(&allowScripts, "allow-scripts", false, "let clients filter with Go scripts; only for trusted clients")
	return c
}

func serve(ctx context.Context, conf *config.Config) (err error) {
	ds, release, err := loader.Load(ctx, conf.Source)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			err = multierror.Append(err, rerr)
		}
	}()
	scope.Info("source loaded", zap.String("path", conf.Source.Path), zap.String("size", countRows(ds.RowCount())))

	columns, err := datatable.ColumnNames(ds)
	if err != nil {
		return err
	}
	base, err := rowFilter(conf, columns)
	if err != nil {
		return err
	}
	orders, err := sortOrders(conf.Sort)
	if err != nil {
		return err
	}

	var metrics *monitoring.Metrics
	if conf.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if metrics, err = monitoring.NewMetrics(reg); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle(conf.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		stopMetrics := runHTTP(ctx, &http.Server{Addr: conf.Metrics.Listen, Handler: mux})
		defer stopMetrics()
		scope.Info("serving metrics", zap.String("address", conf.Metrics.Listen), zap.String("path", conf.Metrics.Path))
	}

	srv, err := rpc.NewServer(ds, rpc.Options{
		MinPushSize:  conf.MinPushSize,
		Keys:         conf.KeyGenerator,
		Metrics:      metrics,
		Formatted:    conf.Formatted,
		Filter:       base,
		Sort:         orders,
		AllowScripts: conf.AllowScripts,
	})
	if err != nil {
		return err
	}

	stopReload := reloadOnHangup(ctx, conf, srv, &release)
	defer stopReload()

	switch conf.Transport {
	case config.TransportTCP:
		l, err := net.Listen("tcp", conf.Listen)
		if err != nil {
			return err
		}
		scope.Info("serving tcp", zap.String("address", l.Addr().String()))
		return srv.Serve(ctx, l)
	case config.TransportWebsocket:
		scope.Info("serving websocket", zap.String("address", conf.Listen))
		hs := &http.Server{Addr: conf.Listen, Handler: srv.WebsocketHandler()}
		stopWS := runHTTP(ctx, hs)
		<-ctx.Done()
		stopWS()
		return nil
	default:
		return srv.ServeStream(ctx, stdio{})
	}
}

// runHTTP starts hs in the background and returns a function shutting it
// down.
func runHTTP(ctx context.Context, hs *http.Server) func() {
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			scope.Error("http server failed", zap.String("address", hs.Addr), zap.Error(err))
		}
	}()
	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			scope.Warn("http shutdown", zap.String("address", hs.Addr), zap.Error(err))
		}
	}
}

// reloadOnHangup reloads the source on SIGHUP. The previous source is
// released once the server has switched over.
func reloadOnHangup(ctx context.Context, conf *config.Config, srv *rpc.Server, release *loader.Release) func() {
	ctx, cancel := context.WithCancel(ctx)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
			}
			ds, next, err := loader.Load(ctx, conf.Source)
			if err != nil {
				scope.Error("reload failed", zap.Error(err))
				continue
			}
			if err := srv.Reload(ds); err != nil {
				scope.Error("reload failed", zap.Error(err))
				_ = next()
				continue
			}
			if err := (*release)(); err != nil {
				scope.Warn("releasing previous source", zap.Error(err))
			}
			*release = next
			scope.Info("source reloaded", zap.String("size", countRows(ds.RowCount())))
		}
	}()
	return func() {
		signal.Stop(hup)
		cancel()
		<-done
	}
}

// stdio joins stdin and stdout into the connection of the stdio transport.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		os.Stdout.Close()
		return fmt.Errorf("closing stdin: %w", err)
	}
	return os.Stdout.Close()
}
