package arrow

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// LoadParquetFile reads a Parquet file into memory, keeping the named
// columns (all when none are named) and at most limit rows (all when
// limit <= 0).
func LoadParquetFile(ctx context.Context, filePath string, columns []string, limit int64) (*DataSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f, file.WithReadProps(parquet.NewReaderProperties(nil)))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer table.Release()

	projected, err := Project(table, columns, limit)
	if err != nil {
		return nil, err
	}
	defer projected.Release()

	ds, err := NewFromArrowTable(projected)
	if err != nil {
		return nil, err
	}
	ds.meta["format"] = "parquet"
	ds.meta["path"] = filePath
	return ds, nil
}
