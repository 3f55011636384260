package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"records-migrate/internal/engine"
	"records-migrate/internal/store"

	"go.uber.org/multierr"
)

// StudentGradesQuery lists every enrollment with its grade, if any.
const StudentGradesQuery = `SELECT s.student_id, s.first_name, s.last_name, c.course_name, g.grade
FROM students s
JOIN enrollments e ON e.student_id = s.student_id
JOIN courses c ON c.course_id = e.course_id
LEFT JOIN grades g ON g.enrollment_id = e.enrollment_id
ORDER BY s.student_id, c.course_name`

// StudentGradesHeader is the header written for StudentGradesQuery.
var StudentGradesHeader = []string{"Student ID", "First Name", "Last Name", "Course", "Grade"}

// Sink consumes tabular rows.
type Sink interface {
	WriteHeader(columns []string) error
	WriteRow(values []any) error
	Close() error
}

// CSVSink writes rows as comma separated values.
type CSVSink struct {
	w *csv.Writer
	c io.Closer
}

// NewCSVSink writes to w. If w is an io.Closer it is closed by Close.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	return s
}

func (s *CSVSink) WriteHeader(columns []string) error {
	return s.w.Write(columns)
}

func (s *CSVSink) WriteRow(values []any) error {
	rec := make([]string, len(values))
	for i, v := range values {
		rec[i] = formatValue(v)
	}
	return s.w.Write(rec)
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.c != nil {
		err = multierr.Append(err, s.c.Close())
	}
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Export runs query on exec and writes the result to sink. header replaces
// the column names reported by the driver when it is not empty. The sink is
// not closed.
func Export(ctx context.Context, exec store.Executor, query string, header []string, sink Sink) (int, error) {
	src, err := engine.NewQuerySource(ctx, exec, query)
	if err != nil {
		return 0, fmt.Errorf("report query: %w", err)
	}
	defer src.Close()

	if len(header) == 0 {
		header = src.Columns()
	} else if len(header) != len(src.Columns()) {
		return 0, fmt.Errorf("report header has %d columns, query returns %d", len(header), len(src.Columns()))
	}
	if err := sink.WriteHeader(header); err != nil {
		return 0, err
	}

	n := 0
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("report row %d: %w", n+1, err)
		}
		if err := sink.WriteRow(row.Values); err != nil {
			return n, err
		}
		n++
	}
}
