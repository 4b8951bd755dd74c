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

// Package loader opens the data source described by a configuration.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	arrowadapter "github.com/magpierre/datacomm/adapters/arrow"
	"github.com/magpierre/datacomm/adapters/boltdb"
	csvadapter "github.com/magpierre/datacomm/adapters/csv"
	"github.com/magpierre/datacomm/adapters/deltasharing"
	sliceadapter "github.com/magpierre/datacomm/adapters/slice"
	"github.com/magpierre/datacomm/datatable"
	"github.com/magpierre/datacomm/internal/config"
	"github.com/magpierre/datacomm/internal/log"
)

var scope = log.RegisterScope("loader", "data source loading")

// ErrUnsupported is returned for files of unknown type.
var ErrUnsupported = errors.New("unsupported file type")

// FileType represents the type of data file
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCSV
	FileTypeParquet
	FileTypeJSON
	FileTypeDeltaSharingProfile
	FileTypeBolt
)

// Kind returns the configuration source kind of the file type.
func (f FileType) Kind() string {
	switch f {
	case FileTypeCSV:
		return config.SourceCSV
	case FileTypeParquet:
		return config.SourceParquet
	case FileTypeJSON:
		return config.SourceJSON
	case FileTypeDeltaSharingProfile:
		return config.SourceDelta
	case FileTypeBolt:
		return config.SourceBolt
	}
	return ""
}

// DetectFileType determines the type of file based on extension and content
func DetectFileType(filePath string, content []byte) FileType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".tsv":
		return FileTypeCSV
	case ".parquet":
		return FileTypeParquet
	case ".db", ".bolt":
		return FileTypeBolt
	case ".json", ".share", ".txt":
		if isDeltaSharingProfile(content) {
			return FileTypeDeltaSharingProfile
		}
		return FileTypeJSON
	default:
		return FileTypeUnknown
	}
}

// isDeltaSharingProfile checks if the content looks like a Delta Sharing profile
func isDeltaSharingProfile(content []byte) bool {
	var profile map[string]interface{}
	if err := json.Unmarshal(content, &profile); err != nil {
		return false
	}
	_, hasVersion := profile["shareCredentialsVersion"]
	_, hasEndpoint := profile["endpoint"]
	_, hasBearerToken := profile["bearerToken"]
	return hasVersion && hasEndpoint && hasBearerToken
}

// Release frees what a loaded source holds.
type Release func() error

// Load opens the configured source. Column selection and row limits apply
// to every kind except bolt tables.
func Load(ctx context.Context, src config.Source) (datatable.DataSource, Release, error) {
	kind := src.Kind
	if kind == "" {
		content, err := head(src.Path)
		if err != nil {
			return nil, nil, err
		}
		kind = DetectFileType(src.Path, content).Kind()
		if kind == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, src.Path)
		}
	}
	scope.Infof("loading %s source %s", kind, src.Path)

	var ds *arrowadapter.DataSource
	var err error
	switch kind {
	case config.SourceCSV:
		ds, err = csvadapter.NewFromFile(src.Path, csvadapter.DefaultConfig())
	case config.SourceParquet:
		ds, err = arrowadapter.LoadParquetFile(ctx, src.Path, src.Columns, src.Limit)
	case config.SourceJSON:
		ds, err = loadJSON(src.Path)
	case config.SourceDelta:
		ds, err = loadDelta(ctx, src)
	case config.SourceBolt:
		if len(src.Columns) > 0 || src.Limit > 0 {
			scope.Warnf("columns and limit are ignored for bolt tables")
		}
		t, err := boltdb.OpenTable(src.Path, src.Table)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: kind %q", ErrUnsupported, kind)
	}
	if err != nil {
		return nil, nil, err
	}

	if kind == config.SourceCSV || kind == config.SourceJSON {
		if ds, err = narrow(ds, src.Columns, src.Limit); err != nil {
			return nil, nil, err
		}
	}
	return ds, func() error { ds.Release(); return nil }, nil
}

func loadJSON(path string) (*arrowadapter.DataSource, error) {
	s, err := sliceadapter.NewFromJSONFile(path)
	if err != nil {
		return nil, err
	}
	table, err := arrowadapter.FromDataSource(s, nil)
	if err != nil {
		return nil, err
	}
	defer table.Release()
	ds, err := arrowadapter.NewFromArrowTable(table)
	if err != nil {
		return nil, err
	}
	ds.Metadata()["format"] = "json"
	ds.Metadata()["path"] = path
	return ds, nil
}

func loadDelta(ctx context.Context, src config.Source) (*arrowadapter.DataSource, error) {
	name, err := deltasharing.ParseTableName(src.Table)
	if err != nil {
		return nil, err
	}
	client, err := deltasharing.NewClientFromFile(src.Path)
	if err != nil {
		return nil, err
	}
	return client.Load(ctx, name, deltasharing.LoadOptions{
		FileID:  src.FileID,
		Columns: src.Columns,
		Limit:   src.Limit,
		Timeout: src.Timeout,
	})
}

// narrow applies a column selection and row limit, releasing ds when a new
// source is returned.
func narrow(ds *arrowadapter.DataSource, columns []string, limit int64) (*arrowadapter.DataSource, error) {
	if len(columns) == 0 && limit <= 0 {
		return ds, nil
	}
	defer ds.Release()
	table, err := arrowadapter.Project(ds.Table(), columns, limit)
	if err != nil {
		return nil, err
	}
	defer table.Release()
	narrowed, err := arrowadapter.NewFromArrowTable(table)
	if err != nil {
		return nil, err
	}
	for k, v := range ds.Metadata() {
		narrowed.Metadata()[k] = v
	}
	return narrowed, nil
}

// head returns up to the first 64KiB of a file for type detection.
func head(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	buf := make([]byte, 64<<10)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
