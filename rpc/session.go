package rpc

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"

	"github.com/magpierre/datacomm/communicator"
	"github.com/magpierre/datacomm/datatable"
)

// codeNotInitialized is returned for requests sent before initialize.
const codeNotInitialized = -32002

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
	errNotInitialized = &jsonrpc2.Error{
		Code: codeNotInitialized, Message: "session not initialized"}
	errInitialized = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidRequest, Message: "session already initialized"}
)

// Session is the server side of one client connection.
//
// The session lock serializes client requests with provider events, so the
// communicator is only ever used by one goroutine at a time.
type Session struct {
	id     string
	server *Server

	mu          sync.Mutex
	conn        *jsonrpc2.Conn
	comm        *communicator.DataCommunicator[*datatable.Row]
	slot        communicator.FilterSlot[datatable.Filter]
	initialized bool
}

func newSession(srv *Server) (*Session, error) {
	s := &Session{id: uuid.NewString(), server: srv}

	cfg := communicator.Config{
		MinPushSize: srv.opts.MinPushSize,
		Metrics:     srv.opts.Metrics,
		Access:      s.access,
	}
	if srv.opts.Keys != nil {
		cfg.KeyGenerator = srv.opts.Keys()
	}
	s.comm = communicator.New[*datatable.Row](notifier{s}, cfg)

	slot, err := communicator.SetDataProvider(s.comm, srv.data, nil)
	if err != nil {
		return nil, err
	}
	s.slot = slot
	if err := s.comm.AddDataGenerator(&datatable.RowGenerator{Formatted: srv.opts.Formatted}); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// access runs provider events under the session lock and answers them with
// a cycle of their own, as no client request is in flight.
func (s *Session) access(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	if !s.initialized || !s.comm.IsDirty() {
		return
	}
	if err := s.comm.BeforeClientResponse(context.Background(), false); err != nil {
		scope.Warn("pushing provider change failed", zap.String("session", s.id), zap.Error(err))
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comm.Detach()
	s.initialized = false
}

type method func(ctx context.Context, params []byte) (any, error)

func (s *Session) handler() jsonrpc2.Handler {
	return routingHandler(map[string]method{
		MethodInitialize:  s.initialize,
		MethodRequestRows: s.requestRows,
		MethodDropRows:    s.dropRows,
		MethodSetSort:     s.setSort,
		MethodSetFilter:   s.setFilter,
		MethodRefresh:     s.refresh,
	})
}

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		var params []byte
		if req.Params != nil {
			params = *req.Params
		}
		return fn(ctx, params)
	})
}

func absent(params []byte) bool {
	params = bytes.TrimSpace(params)
	return len(params) == 0 || bytes.Equal(params, []byte("null"))
}

func decode(params []byte, v any) error {
	if absent(params) || json.Unmarshal(params, v) != nil {
		return errInvalidParams
	}
	return nil
}

func invalidParams(err error) error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
}

func (s *Session) initialize(ctx context.Context, params []byte) (any, error) {
	var p InitializeParams
	if !absent(params) {
		if err := decode(params, &p); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil, errInitialized
	}

	orders, err := s.server.parseSort(p.Sort)
	if err != nil {
		return nil, invalidParams(err)
	}
	f, err := s.server.compileFilter(p.Expression, p.Script)
	if err != nil {
		return nil, invalidParams(err)
	}
	s.comm.SetBackEndSorting(orders)
	if f != nil {
		if err := s.slot(f); err != nil {
			return nil, err
		}
	}

	s.comm.Attach()
	s.initialized = true
	if err := s.respond(ctx, true); err != nil {
		return nil, err
	}
	scope.Info("session initialized", zap.String("session", s.id), zap.Int("sort", len(orders)), zap.Bool("filtered", f != nil))
	return &InitializeResult{SessionID: s.id, Columns: s.server.columns()}, nil
}

func (s *Session) requestRows(ctx context.Context, params []byte) (any, error) {
	var p RequestRowsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.First < 0 || p.Count < 0 {
		return nil, invalidParams(fmt.Errorf("negative window: first %d, count %d", p.First, p.Count))
	}
	return s.cycle(ctx, func() (any, error) {
		s.comm.RequestRows(p.First, p.Count, p.FirstCached, p.CacheSize)
		return nil, nil
	})
}

func (s *Session) dropRows(ctx context.Context, params []byte) (any, error) {
	var p DropRowsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.cycle(ctx, func() (any, error) {
		s.comm.DropRows(p.Keys)
		return nil, nil
	})
}

func (s *Session) setSort(ctx context.Context, params []byte) (any, error) {
	var p SetSortParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	orders, err := s.server.parseSort(p.Sort)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.cycle(ctx, func() (any, error) {
		s.comm.SetBackEndSorting(orders)
		return nil, nil
	})
}

func (s *Session) setFilter(ctx context.Context, params []byte) (any, error) {
	var p SetFilterParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	f, err := s.server.compileFilter(p.Expression, p.Script)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.cycle(ctx, func() (any, error) {
		return nil, s.slot(f)
	})
}

// refresh reads the rows behind keys from the source again. Rows are
// refreshed for this session only; Server.RefreshRow reaches all sessions.
func (s *Session) refresh(ctx context.Context, params []byte) (any, error) {
	var p RefreshParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.cycle(ctx, func() (any, error) {
		keys := s.comm.KeyMapper()
		var res RefreshResult
		for _, key := range p.Keys {
			row, ok := keys.Get(key)
			if !ok {
				res.Unknown = append(res.Unknown, key)
				continue
			}
			fresh, err := s.server.table.RowAt(row.Index)
			if err != nil {
				return nil, fmt.Errorf("reading row %d: %w", row.Index, err)
			}
			keys.Refresh(fresh)
			s.comm.Refresh(fresh)
		}
		return &res, nil
	})
}

// cycle applies fn and answers with a reconciliation cycle, all under the
// session lock.
func (s *Session) cycle(ctx context.Context, fn func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, errNotInitialized
	}
	res, err := fn()
	if err != nil {
		return nil, err
	}
	if err := s.respond(ctx, false); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Session) respond(ctx context.Context, initial bool) error {
	if err := s.comm.BeforeClientResponse(ctx, initial); err != nil {
		scope.Error("response cycle failed", zap.String("session", s.id), zap.Error(err))
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	return nil
}

// notifier sends the signals of a cycle as notifications on the session
// connection.
type notifier struct{ s *Session }

var _ communicator.ClientRPC = notifier{}

func (n notifier) Reset(ctx context.Context, size int) error {
	return n.s.conn.Notify(ctx, NotifyReset, &ResetParams{Size: size})
}

func (n notifier) SetData(ctx context.Context, first int, rows []communicator.JSONObject) error {
	return n.s.conn.Notify(ctx, NotifySetData, &SetDataParams{FirstIndex: first, Rows: rows})
}

func (n notifier) UpdateData(ctx context.Context, rows []communicator.JSONObject) error {
	return n.s.conn.Notify(ctx, NotifyUpdateData, &UpdateDataParams{Rows: rows})
}
