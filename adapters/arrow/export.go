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

package arrow

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"github.com/magpierre/datacomm/datatable"
)

// ExportFormat represents the supported export formats
type ExportFormat int

const (
	FormatParquet ExportFormat = iota
	FormatCSV
	FormatJSON
)

// ErrUnknownFormat is returned for export formats that are not supported.
var ErrUnknownFormat = errors.New("unknown export format")

// String returns the format name.
func (f ExportFormat) String() string {
	switch f {
	case FormatParquet:
		return "parquet"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("ExportFormat(%d)", int(f))
	}
}

// ParseFormat parses a format name. File extensions with a leading dot are
// accepted as well.
func ParseFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "parquet":
		return FormatParquet, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks the export format from the file extension.
func FormatFromPath(path string) (ExportFormat, error) {
	return ParseFormat(filepath.Ext(path))
}

// Export writes table to filePath in the given format.
func Export(table arrow.Table, format ExportFormat, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", format, err)
	}
	if err := Write(table, format, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Write encodes table to w in the given format.
func Write(table arrow.Table, format ExportFormat, w io.Writer) error {
	switch format {
	case FormatParquet:
		return WriteParquet(table, w)
	case FormatCSV:
		return WriteCSV(table, w)
	case FormatJSON:
		return WriteJSON(table, w)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// ExportRows writes the given rows of ds to filePath. A nil rows slice
// exports every row.
func ExportRows(ds datatable.DataSource, rows []int, format ExportFormat, filePath string) error {
	table, err := FromDataSource(ds, rows)
	if err != nil {
		return err
	}
	defer table.Release()
	return Export(table, format, filePath)
}

// WriteParquet writes the table as Snappy compressed Parquet.
func WriteParquet(table arrow.Table, w io.Writer) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(table.Schema(), nopCloser{w}, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.WriteTable(table, max(table.NumRows(), 1)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write table to parquet: %w", err)
	}
	return writer.Close()
}

// WriteCSV writes the table as CSV with a header line. Nulls are written as
// empty fields.
func WriteCSV(table arrow.Table, w io.Writer) error {
	writer := csv.NewWriter(w, table.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))

	tr := array.NewTableReader(table, max(table.NumRows(), 1))
	defer tr.Release()
	for tr.Next() {
		if err := writer.Write(tr.Record()); err != nil {
			return fmt.Errorf("failed to write CSV rows: %w", err)
		}
	}
	if tr.Err() != nil {
		return fmt.Errorf("error reading table: %w", tr.Err())
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return writer.Error()
}

// WriteJSON writes the table as an indented JSON array of objects keyed by
// column name.
func WriteJSON(table arrow.Table, w io.Writer) error {
	ds, err := NewFromArrowTable(table)
	if err != nil {
		return err
	}
	defer ds.Release()

	records := make([]map[string]interface{}, 0, ds.RowCount())
	for r := 0; r < ds.RowCount(); r++ {
		values, err := ds.Row(r)
		if err != nil {
			return err
		}
		record := make(map[string]interface{}, len(values))
		for col, v := range values {
			record[ds.names[col]] = jsonValue(v)
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// jsonValue keeps numbers and booleans typed and writes everything else in
// its formatted form.
func jsonValue(v datatable.Value) interface{} {
	if v.IsNull {
		return nil
	}
	switch v.Raw.(type) {
	case int64, float64, bool, string:
		return v.Raw
	}
	return v.Formatted
}

// nopCloser keeps the parquet writer from closing the caller's writer.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
