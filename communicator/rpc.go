//go:generate mockgen -package $GOPACKAGE -source $GOFILE -destination rpc_mock.go

package communicator

import "context"

// ClientRPC carries the signals of a reconciliation cycle to the client.
type ClientRPC interface {
	// Reset tells the client the new total size; cached rows beyond size
	// must be discarded.
	Reset(ctx context.Context, size int) error
	// SetData delivers rows starting at index first.
	SetData(ctx context.Context, first int, rows []JSONObject) error
	// UpdateData delivers rows whose content changed, matched by key.
	UpdateData(ctx context.Context, rows []JSONObject) error
}

// DataRequestRPC are the requests a client sends to a communicator.
type DataRequestRPC interface {
	// RequestRows asks for the rows [first, first+count). The cache
	// arguments describe what the client already holds.
	RequestRows(first, count, firstCached, cacheSize int)
	// DropRows releases rows the client no longer needs.
	DropRows(keys []string)
}
