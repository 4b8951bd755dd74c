// Package boltdb keeps tables in a bbolt database. Tables are mutable:
// rows can be appended and replaced in place, which makes them a source for
// item level refreshes.
package boltdb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	bolt "go.etcd.io/bbolt"

	"github.com/magpierre/datacomm/datatable"
)

var (
	// ErrNoTable is returned when opening a table that was never created.
	ErrNoTable = errors.New("no such table")
	// ErrTableExists is returned when creating a table that already exists.
	ErrTableExists = errors.New("table already exists")
)

const (
	bucketRows = "rows"
	keySchema  = "schema"
)

// Column describes one column of a stored table.
type Column struct {
	Name string             `json:"name"`
	Type datatable.DataType `json:"type"`
}

// Store is an open bbolt database holding any number of tables.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tables returns the names of the stored tables.
func (s *Store) Tables() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

// Create creates an empty table.
func (s *Store) Create(name string, columns []Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s has no columns", datatable.ErrEmptyData, name)
	}
	schema, err := json.Marshal(columns)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) != nil {
			return fmt.Errorf("%w: %s", ErrTableExists, name)
		}
		b, err := tx.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		if _, err := b.CreateBucket([]byte(bucketRows)); err != nil {
			return err
		}
		return b.Put([]byte(keySchema), schema)
	})
	if err != nil {
		return nil, err
	}
	return &Table{db: s.db, name: name, columns: columns}, nil
}

// Import creates a table holding a copy of ds, written in one transaction.
func (s *Store) Import(name string, ds datatable.DataSource) (*Table, error) {
	columns := make([]Column, ds.ColumnCount())
	for i := range columns {
		n, err := ds.ColumnName(i)
		if err != nil {
			return nil, err
		}
		dt, err := ds.ColumnType(i)
		if err != nil {
			return nil, err
		}
		columns[i] = Column{Name: n, Type: dt}
	}
	t, err := s.Create(name, columns)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := t.rows(tx)
		for r := 0; r < ds.RowCount(); r++ {
			values, err := ds.Row(r)
			if err != nil {
				return err
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if err := b.Put(marshalSeq(seq), encodeRow(values)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", name, err)
	}
	return t, nil
}

// Table opens an existing table.
func (s *Store) Table(name string) (*Table, error) {
	var columns []Column
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, name)
		}
		return json.Unmarshal(b.Get([]byte(keySchema)), &columns)
	})
	if err != nil {
		return nil, err
	}
	return &Table{db: s.db, name: name, columns: columns}, nil
}

// Drop deletes a table.
func (s *Store) Drop(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(name))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("%w: %s", ErrNoTable, name)
		}
		return err
	})
}

// OpenTable opens the database at path and the named table in it. Closing
// the returned table closes the database.
func OpenTable(path, name string) (*Table, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	t, err := s.Table(name)
	if err != nil {
		return nil, multierror.Append(err, s.Close()).ErrorOrNil()
	}
	t.owner = s
	return t, nil
}

// Table is a stored table. It implements datatable.DataSource; row i is
// stored under sequence number i+1.
type Table struct {
	db      *bolt.DB
	name    string
	columns []Column
	owner   *Store

	mu sync.Mutex
}

var _ datatable.DataSource = (*Table)(nil)

func (t *Table) rows(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte(t.name)).Bucket([]byte(bucketRows))
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Close closes the database if the table was opened with OpenTable.
func (t *Table) Close() error {
	if t.owner == nil {
		return nil
	}
	return t.owner.Close()
}

// Append adds a row and returns its index.
func (t *Table) Append(values []datatable.Value) (int, error) {
	if err := t.check(values); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var seq uint64
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := t.rows(tx)
		var err error
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), encodeRow(values))
	})
	return int(seq) - 1, err
}

// Put replaces the row at index.
func (t *Table) Put(index int, values []datatable.Value) error {
	if err := t.check(values); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.db.Update(func(tx *bolt.Tx) error {
		b := t.rows(tx)
		if index < 0 || uint64(index) >= b.Sequence() {
			return fmt.Errorf("%w: %d", datatable.ErrInvalidRow, index)
		}
		return b.Put(marshalSeq(uint64(index)+1), encodeRow(values))
	})
}

func (t *Table) check(values []datatable.Value) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: got %d values for %d columns", datatable.ErrInvalidColumn, len(values), len(t.columns))
	}
	return nil
}

// RowCount implements datatable.DataSource.
func (t *Table) RowCount() int {
	var n uint64
	_ = t.db.View(func(tx *bolt.Tx) error {
		n = t.rows(tx).Sequence()
		return nil
	})
	return int(n)
}

// ColumnCount implements datatable.DataSource.
func (t *Table) ColumnCount() int { return len(t.columns) }

// ColumnName implements datatable.DataSource.
func (t *Table) ColumnName(col int) (string, error) {
	if col < 0 || col >= len(t.columns) {
		return "", fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}
	return t.columns[col].Name, nil
}

// ColumnType implements datatable.DataSource.
func (t *Table) ColumnType(col int) (datatable.DataType, error) {
	if col < 0 || col >= len(t.columns) {
		return datatable.TypeString, fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}
	return t.columns[col].Type, nil
}

// Cell implements datatable.DataSource.
func (t *Table) Cell(row, col int) (datatable.Value, error) {
	if col < 0 || col >= len(t.columns) {
		return datatable.Value{}, fmt.Errorf("%w: %d", datatable.ErrInvalidColumn, col)
	}
	values, err := t.Row(row)
	if err != nil {
		return datatable.Value{}, err
	}
	return values[col], nil
}

// Row implements datatable.DataSource.
func (t *Table) Row(row int) ([]datatable.Value, error) {
	var values []datatable.Value
	err := t.db.View(func(tx *bolt.Tx) error {
		if row < 0 {
			return fmt.Errorf("%w: %d", datatable.ErrInvalidRow, row)
		}
		v := t.rows(tx).Get(marshalSeq(uint64(row) + 1))
		if v == nil {
			return fmt.Errorf("%w: %d", datatable.ErrInvalidRow, row)
		}
		var err error
		values, err = t.decodeRow(v)
		return err
	})
	return values, err
}

// Metadata implements datatable.DataSource.
func (t *Table) Metadata() datatable.Metadata {
	return datatable.Metadata{"format": "bolt", "table": t.name}
}

// Rows are stored as JSON arrays of formatted values, null for nulls.
func encodeRow(values []datatable.Value) []byte {
	cells := make([]*string, len(values))
	for i, v := range values {
		if !v.IsNull {
			s := v.Formatted
			cells[i] = &s
		}
	}
	b, _ := json.Marshal(cells)
	return b
}

func (t *Table) decodeRow(data []byte) ([]datatable.Value, error) {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, err
	}
	values := make([]datatable.Value, len(t.columns))
	for i, c := range t.columns {
		if i >= len(cells) || cells[i] == nil {
			values[i] = datatable.NewNullValue(c.Type)
			continue
		}
		v, err := parseValue(*cells[i], c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		values[i] = v
	}
	return values, nil
}

func parseValue(s string, dt datatable.DataType) (datatable.Value, error) {
	var raw interface{}
	var err error
	switch dt {
	case datatable.TypeInt:
		raw, err = strconv.ParseInt(s, 10, 64)
	case datatable.TypeFloat:
		raw, err = strconv.ParseFloat(s, 64)
	case datatable.TypeBool:
		raw, err = strconv.ParseBool(s)
	case datatable.TypeDate:
		raw, err = time.Parse(time.DateOnly, s)
	case datatable.TypeTimestamp:
		raw, err = time.Parse(time.RFC3339Nano, s)
	case datatable.TypeBinary:
		raw, err = hex.DecodeString(s)
	default:
		raw = s
	}
	if err != nil {
		return datatable.Value{}, fmt.Errorf("%w: %v", datatable.ErrTypeMismatch, err)
	}
	return datatable.NewValue(raw, dt), nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
