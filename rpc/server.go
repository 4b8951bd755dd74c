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

// Package rpc serves a table to JSON-RPC 2.0 clients. Every connection is a
// session owning one DataCommunicator; client requests drive the
// reconciliation cycles and rows are pushed back as notifications.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	jsonrpc2ws "github.com/sourcegraph/jsonrpc2/websocket"
	"go.uber.org/zap"

	"github.com/magpierre/datacomm/communicator"
	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/filter"
	"github.com/magpierre/datacomm/internal/log"
	"github.com/magpierre/datacomm/monitoring"
	"github.com/magpierre/datacomm/provider"
)

var scope = log.RegisterScope("rpc", "JSON-RPC sessions")

// ErrScriptsDisabled is returned for script filters sent to a server that
// does not allow them.
var ErrScriptsDisabled = errors.New("script filters are disabled")

// Options configures a Server.
type Options struct {
	// MinPushSize is passed to every communicator.
	MinPushSize int
	// Keys returns the key generator of a new session. Nil uses sequential
	// keys.
	Keys func() communicator.KeyGenerator
	// Metrics is shared by all sessions. May be nil.
	Metrics *monitoring.Metrics
	// Formatted sends cells as formatted strings instead of raw values.
	Formatted bool
	// Filter is applied to every session in addition to the session filter.
	Filter datatable.Filter
	// Sort orders are applied after the session sort orders.
	Sort []provider.SortOrder
	// AllowScripts lets clients filter with Go scripts. Scripts run
	// in-process without limits, so only trusted clients should get them.
	AllowScripts bool
}

// Server serves one table to any number of sessions.
type Server struct {
	table *datatable.TableProvider
	data  provider.DataProvider[*datatable.Row, datatable.Filter]
	opts  Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer returns a server for ds.
func NewServer(ds datatable.DataSource, opts Options) (*Server, error) {
	table, err := datatable.NewTableProvider(ds)
	if err != nil {
		return nil, err
	}
	if err := validateSort(table.Columns(), opts.Sort); err != nil {
		return nil, err
	}

	var data provider.DataProvider[*datatable.Row, datatable.Filter] = table
	if opts.Filter != nil {
		appendable, err := provider.NewAppendableFilterDataProvider(data, filter.Combine)
		if err != nil {
			return nil, err
		}
		data = appendable.WithFilter(opts.Filter)
	}
	if len(opts.Sort) > 0 {
		data = provider.SortingBy(data, opts.Sort...)
	}
	return &Server{
		table:    table,
		data:     data,
		opts:     opts,
		sessions: make(map[string]*Session),
	}, nil
}

// Table returns the provider all sessions read from.
func (s *Server) Table() *datatable.TableProvider { return s.table }

// Reload replaces the served data. Every session is reset.
func (s *Server) Reload(ds datatable.DataSource) error {
	return s.table.SetSource(ds)
}

// RefreshRow reads the row at index again and sends it to every session
// that knows it.
func (s *Server) RefreshRow(index int) error {
	row, err := s.table.RowAt(index)
	if err != nil {
		return err
	}
	s.table.RefreshItem(row)
	return nil
}

// Sessions returns the ids of the open sessions.
func (s *Server) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ServeStream runs a session over rwc using LSP style header framing. It
// returns when the peer disconnects or ctx is done.
func (s *Server) ServeStream(ctx context.Context, rwc io.ReadWriteCloser) error {
	return s.serve(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}))
}

// Serve accepts connections from l and serves each with ServeStream until
// ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		scope.Info("accepted connection", zap.Stringer("remote", conn.RemoteAddr()))
		go func() {
			if err := s.ServeStream(ctx, conn); err != nil {
				scope.Warn("session ended with error", zap.Error(err))
			}
		}()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// WebsocketHandler upgrades HTTP requests to websocket sessions.
func (s *Server) WebsocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			scope.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		if err := s.serve(r.Context(), jsonrpc2ws.NewObjectStream(conn)); err != nil {
			scope.Warn("session ended with error", zap.Error(err))
		}
	})
}

func (s *Server) serve(ctx context.Context, stream jsonrpc2.ObjectStream) error {
	sess, err := newSession(s)
	if err != nil {
		stream.Close()
		return err
	}

	// requests wait for the session lock until conn is set
	sess.mu.Lock()
	conn := jsonrpc2.NewConn(ctx, stream, sess.handler())
	sess.conn = conn
	sess.mu.Unlock()

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	scope.Debug("session opened", zap.String("session", sess.id))

	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}

	sess.close()
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	scope.Debug("session closed", zap.String("session", sess.id))
	return nil
}

// columns describes the served table.
func (s *Server) columns() []Column {
	ds := s.table.Source()
	out := make([]Column, 0, ds.ColumnCount())
	for i := 0; i < ds.ColumnCount(); i++ {
		name, err := ds.ColumnName(i)
		if err != nil {
			continue
		}
		dt, _ := ds.ColumnType(i)
		out = append(out, Column{Name: name, Type: dt.String()})
	}
	return out
}

// parseSort parses and checks client sort orders.
func (s *Server) parseSort(specs []string) ([]provider.SortOrder, error) {
	orders := make([]provider.SortOrder, 0, len(specs))
	for _, spec := range specs {
		o, err := datatable.ParseSortOrder(spec)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := validateSort(s.table.Columns(), orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// compileFilter builds a session filter. Both arguments empty yields nil.
func (s *Server) compileFilter(expression, script string) (datatable.Filter, error) {
	switch {
	case expression != "" && script != "":
		return nil, fmt.Errorf("%w: expression and script are exclusive", datatable.ErrInvalidFilter)
	case script != "":
		if !s.opts.AllowScripts {
			return nil, ErrScriptsDisabled
		}
		f, err := filter.CompileScript(script)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return filter.ParseExpression(expression, s.table.Columns())
	}
}

func validateSort(columns []string, orders []provider.SortOrder) error {
	for _, o := range orders {
		if !slices.Contains(columns, o.Property) {
			return fmt.Errorf("%w: %s", datatable.ErrInvalidSortColumn, o.Property)
		}
	}
	return nil
}
