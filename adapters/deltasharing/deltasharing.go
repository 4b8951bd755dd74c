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

// Package deltasharing loads tables published over the Delta Sharing
// protocol.
package deltasharing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"

	arrowadapter "github.com/magpierre/datacomm/adapters/arrow"
	"github.com/magpierre/datacomm/internal/log"
)

var scope = log.RegisterScope("deltasharing", "Delta Sharing client")

var (
	// ErrInvalidTableName is returned for names not of the form share.schema.table.
	ErrInvalidTableName = errors.New("table name must be share.schema.table")
	// ErrTableNotFound is returned when the share does not publish the table.
	ErrTableNotFound = errors.New("table not found")
	// ErrFileNotFound is returned when a table has no file with the requested id.
	ErrFileNotFound = errors.New("file not found")
)

// DefaultTimeout bounds each request to the sharing server.
const DefaultTimeout = 30 * time.Second

// TableName identifies a shared table.
type TableName struct {
	Share  string
	Schema string
	Name   string
}

// ParseTableName parses "share.schema.table".
func ParseTableName(s string) (TableName, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || slices.Contains(parts, "") {
		return TableName{}, fmt.Errorf("%w: %q", ErrInvalidTableName, s)
	}
	return TableName{Share: parts[0], Schema: parts[1], Name: parts[2]}, nil
}

func (n TableName) String() string { return n.Share + "." + n.Schema + "." + n.Name }

// LoadOptions selects what part of a table is loaded.
type LoadOptions struct {
	// FileID selects a data file. Empty loads the first file of the table.
	FileID string
	// Columns restricts the loaded columns. Empty loads all.
	Columns []string
	// Limit caps the number of rows. Zero loads all.
	Limit int64
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// backend is the part of the sharing client used here.
type backend interface {
	listTables(ctx context.Context) ([]delta_sharing.Table, error)
	listFiles(ctx context.Context, t delta_sharing.Table) ([]string, error)
	loadArrow(ctx context.Context, t delta_sharing.Table, fileID string) (arrow.Table, error)
}

// Client talks to one Delta Sharing server.
type Client struct {
	b backend
}

// NewClient creates a client from the JSON content of a profile file.
func NewClient(profile string) (*Client, error) {
	c, err := delta_sharing.NewSharingClientV2FromString(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create Delta Sharing client: %w", err)
	}
	return &Client{b: &sharingBackend{client: c}}, nil
}

// NewClientFromFile creates a client from a profile file.
func NewClientFromFile(path string) (*Client, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return NewClient(string(content))
}

// ListTables returns every table published to the profile, ordered by name.
func (c *Client) ListTables(ctx context.Context) ([]TableName, error) {
	tables, err := c.b.listTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names := make([]TableName, len(tables))
	for i, t := range tables {
		names[i] = TableName{Share: t.Share, Schema: t.Schema, Name: t.Name}
	}
	slices.SortFunc(names, func(a, b TableName) int { return strings.Compare(a.String(), b.String()) })
	return names, nil
}

// Files returns the data file ids of a table.
func (c *Client) Files(ctx context.Context, name TableName, timeout time.Duration) ([]string, error) {
	t, err := c.lookup(ctx, name, timeout)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	return c.b.listFiles(ctx, t)
}

// Load reads one data file of a table into an arrow backed data source.
func (c *Client) Load(ctx context.Context, name TableName, opts LoadOptions) (*arrowadapter.DataSource, error) {
	t, err := c.lookup(ctx, name, opts.Timeout)
	if err != nil {
		return nil, err
	}

	fctx, cancel := withTimeout(ctx, opts.Timeout)
	files, err := c.b.listFiles(fctx, t)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", name, err)
	}
	fileID := opts.FileID
	switch {
	case len(files) == 0:
		return nil, fmt.Errorf("%w: %s has no data files", ErrFileNotFound, name)
	case fileID == "":
		fileID = files[0]
	case !slices.Contains(files, fileID):
		return nil, fmt.Errorf("%w: %s in %s", ErrFileNotFound, fileID, name)
	}

	scope.Infof("loading %s file %s", name, fileID)
	lctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()
	table, err := c.b.loadArrow(lctx, t, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	defer table.Release()

	projected, err := arrowadapter.Project(table, opts.Columns, opts.Limit)
	if err != nil {
		return nil, err
	}
	defer projected.Release()

	ds, err := arrowadapter.NewFromArrowTable(projected)
	if err != nil {
		return nil, err
	}
	md := ds.Metadata()
	md["format"] = "delta"
	md["table"] = name.String()
	md["fileId"] = fileID
	return ds, nil
}

func (c *Client) lookup(ctx context.Context, name TableName, timeout time.Duration) (delta_sharing.Table, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	tables, err := c.b.listTables(ctx)
	if err != nil {
		return delta_sharing.Table{}, fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		if t.Share == name.Share && t.Schema == name.Schema && t.Name == name.Name {
			return t, nil
		}
	}
	return delta_sharing.Table{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

type sharingBackend struct {
	client delta_sharing.SharingClientV2
}

func (s *sharingBackend) listTables(ctx context.Context) ([]delta_sharing.Table, error) {
	// zero page size and concurrency select the client defaults
	tables, _, err := s.client.ListAllTables_V2(ctx, 0, "", 0)
	return tables, err
}

func (s *sharingBackend) listFiles(ctx context.Context, t delta_sharing.Table) ([]string, error) {
	resp, err := s.client.ListFilesInTable(ctx, t)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.AddFiles))
	for _, f := range resp.AddFiles {
		ids = append(ids, f.Id)
	}
	return ids, nil
}

func (s *sharingBackend) loadArrow(ctx context.Context, t delta_sharing.Table, fileID string) (arrow.Table, error) {
	return delta_sharing.LoadArrowTable(ctx, s.client, t, fileID)
}
