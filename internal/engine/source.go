package engine

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"records-migrate/internal/store"
)

// Row is one record with the column names it was read with.
type Row struct {
	Columns []string
	Values  []any
}

// RowSource produces rows for a load. Next returns io.EOF when exhausted.
type RowSource interface {
	Columns() []string
	Next() (Row, error)
	Close() error
}

// CSVSource reads rows from delimited text whose first record is the header.
// Empty fields are passed as NULL. Records of the wrong width are returned as
// read; the loader fails them one by one.
type CSVSource struct {
	r       *csv.Reader
	c       io.Closer
	columns []string
}

// NewCSVSource reads the header from r.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if cols[i] == "" {
			return nil, fmt.Errorf("csv: empty column name at position %d", i+1)
		}
	}

	s := &CSVSource{r: cr, columns: cols}
	if c, ok := r.(io.Closer); ok {
		s.c = c
	}
	return s, nil
}

// OpenCSV opens path as a CSVSource. Close releases the file.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewCSVSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *CSVSource) Columns() []string { return s.columns }

func (s *CSVSource) Next() (Row, error) {
	rec, err := s.r.Read()
	if err != nil {
		if err == io.EOF {
			return Row{}, io.EOF
		}
		return Row{}, fmt.Errorf("csv: %w", err)
	}
	vals := make([]any, len(rec))
	for i, v := range rec {
		if v == "" {
			vals[i] = nil
			continue
		}
		vals[i] = v
	}
	return Row{Columns: s.columns, Values: vals}, nil
}

func (s *CSVSource) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// QuerySource streams the result of a query. Values are passed through as
// the driver returns them.
type QuerySource struct {
	rows    *sql.Rows
	columns []string
}

// NewQuerySource runs query on exec.
func NewQuerySource(ctx context.Context, exec store.Executor, query string, args ...any) (*QuerySource, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &QuerySource{rows: rows, columns: cols}, nil
}

func (s *QuerySource) Columns() []string { return s.columns }

func (s *QuerySource) Next() (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Row{}, err
		}
		return Row{}, io.EOF
	}
	vals := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return Row{}, err
	}
	return Row{Columns: s.columns, Values: vals}, nil
}

func (s *QuerySource) Close() error { return s.rows.Close() }

// SliceSource serves rows held in memory.
type SliceSource struct {
	columns []string
	rows    [][]any
	pos     int
}

func NewSliceSource(columns []string, rows [][]any) *SliceSource {
	return &SliceSource{columns: columns, rows: rows}
}

func (s *SliceSource) Columns() []string { return s.columns }

func (s *SliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return Row{}, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return Row{Columns: s.columns, Values: r}, nil
}

func (s *SliceSource) Close() error { return nil }
