// Package csv loads delimited text files as typed tabular data.
package csv

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"

	arrowadapter "github.com/magpierre/datacomm/adapters/arrow"
	"github.com/magpierre/datacomm/datatable"
)

// Config controls how a CSV file is read.
type Config struct {
	// Delimiter separates fields. Zero detects it from the first line.
	Delimiter rune

	// HasHeaders reports whether the first line holds column names.
	HasHeaders bool

	// ChunkSize is the number of rows read per record batch.
	ChunkSize int

	// NullValues lists the field values read as null.
	NullValues []string
}

// DefaultConfig returns a configuration for headed files with a detected
// delimiter.
func DefaultConfig() Config {
	return Config{
		HasHeaders: true,
		ChunkSize:  4096,
		NullValues: []string{"", "NULL", "null", "NA"},
	}
}

// candidates in tie-break order
var candidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter picks the most frequent of comma, semicolon, tab and pipe
// in line, defaulting to comma.
func DetectDelimiter(line []byte) rune {
	best, bestCount := ',', 0
	for _, sep := range candidates {
		if n := bytes.Count(line, []byte(string(sep))); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

// DelimiterName returns a human readable name for a delimiter.
func DelimiterName(sep rune) string {
	switch sep {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return string(sep)
	}
}

// NewFromFile reads a CSV file, inferring column types from the data.
func NewFromFile(path string, config Config) (*arrowadapter.DataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	ds, err := NewFromReader(f, config)
	if err != nil {
		return nil, fmt.Errorf("failed to load CSV file %s: %w", path, err)
	}
	ds.Metadata()["path"] = path
	return ds, nil
}

// NewFromReader reads CSV data from r, inferring column types from the data.
func NewFromReader(r io.Reader, config Config) (*arrowadapter.DataSource, error) {
	br := bufio.NewReader(r)
	if config.Delimiter == 0 {
		line, err := br.Peek(br.Size())
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		config.Delimiter = DetectDelimiter(line)
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}

	reader := arrowcsv.NewInferringReader(br,
		arrowcsv.WithComma(config.Delimiter),
		arrowcsv.WithHeader(config.HasHeaders),
		arrowcsv.WithChunk(config.ChunkSize),
		arrowcsv.WithNullReader(true, config.NullValues...),
	)
	defer reader.Release()

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, datatable.ErrEmptyData
	}

	table := array.NewTableFromRecords(records[0].Schema(), records)
	defer table.Release()

	ds, err := arrowadapter.NewFromArrowTable(table)
	if err != nil {
		return nil, err
	}
	ds.Metadata()["format"] = "csv"
	ds.Metadata()["delimiter"] = DelimiterName(config.Delimiter)
	return ds, nil
}
