package rpc

import "github.com/magpierre/datacomm/communicator"

// Methods sent by clients.
const (
	MethodInitialize  = "initialize"
	MethodRequestRows = "requestRows"
	MethodDropRows    = "dropRows"
	MethodSetSort     = "setSort"
	MethodSetFilter   = "setFilter"
	MethodRefresh     = "refresh"
)

// Notifications sent to clients.
const (
	NotifyReset      = "reset"
	NotifySetData    = "setData"
	NotifyUpdateData = "updateData"
)

// InitializeParams opens a session. All fields are optional.
type InitializeParams struct {
	Sort       []string `json:"sort,omitempty"`
	Expression string   `json:"expression,omitempty"`
	Script     string   `json:"script,omitempty"`
}

// InitializeResult describes the served table.
type InitializeResult struct {
	SessionID string   `json:"sessionId"`
	Columns   []Column `json:"columns"`
}

// Column is a column of the served table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RequestRowsParams mirrors communicator.DataRequestRPC.RequestRows.
type RequestRowsParams struct {
	First       int `json:"first"`
	Count       int `json:"count"`
	FirstCached int `json:"firstCached"`
	CacheSize   int `json:"cacheSize"`
}

// DropRowsParams lists keys the client released.
type DropRowsParams struct {
	Keys []string `json:"keys"`
}

// SetSortParams replaces the back-end sort orders. Each entry is
// "column", "column asc" or "column desc".
type SetSortParams struct {
	Sort []string `json:"sort"`
}

// SetFilterParams replaces the session filter. At most one of Expression and
// Script may be set; neither clears the filter.
type SetFilterParams struct {
	Expression string `json:"expression,omitempty"`
	Script     string `json:"script,omitempty"`
}

// RefreshParams asks for the rows with the given keys to be read again.
type RefreshParams struct {
	Keys []string `json:"keys"`
}

// RefreshResult lists the keys that are not known to the session.
type RefreshResult struct {
	Unknown []string `json:"unknown,omitempty"`
}

// ResetParams is the payload of the reset notification.
type ResetParams struct {
	Size int `json:"size"`
}

// SetDataParams is the payload of the setData notification.
type SetDataParams struct {
	FirstIndex int                       `json:"firstIndex"`
	Rows       []communicator.JSONObject `json:"rows"`
}

// UpdateDataParams is the payload of the updateData notification.
type UpdateDataParams struct {
	Rows []communicator.JSONObject `json:"rows"`
}
