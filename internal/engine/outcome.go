package engine

import (
	"errors"
	"fmt"
	"strings"
)

// OutcomeKind classifies what happened to a single row.
type OutcomeKind int

const (
	Inserted OutcomeKind = iota
	SkippedDuplicate
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// RowOutcome is the result of inserting one row. Err is set only for Failed.
type RowOutcome struct {
	Kind OutcomeKind
	Err  error
}

// FailurePolicy decides what a non-duplicate row failure does to the rest of
// the batch or table.
type FailurePolicy string

const (
	// FailFast stops at the first failed row. Rows inserted before it are committed.
	FailFast FailurePolicy = "fail-fast"
	// Continue counts the row as failed and moves on.
	Continue FailurePolicy = "continue"
)

// ParsePolicy parses a policy name. The empty string yields FailFast.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailFast:
		return FailFast, nil
	case Continue:
		return Continue, nil
	default:
		return "", fmt.Errorf("unknown row failure policy %q (want %s or %s)", s, FailFast, Continue)
	}
}

var (
	// ErrColumnMismatch is returned when source and destination column sets of a table differ.
	ErrColumnMismatch = errors.New("source and destination columns differ")

	// ErrVerificationFailed is returned when row counts do not match after a run.
	ErrVerificationFailed = errors.New("verification failed")
)

// StatementError is a script statement the store rejected.
type StatementError struct {
	Index int
	Line  int
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d (line %d) %q: %v", e.Index+1, e.Line, abbreviate(e.SQL, 60), e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// RowTransferError is a non-duplicate failure inserting one row. Row is the
// 1-based position of the row in its batch.
type RowTransferError struct {
	Table string
	Row   int
	Err   error
}

func (e *RowTransferError) Error() string {
	return fmt.Sprintf("insert row %d into %s: %v", e.Row, e.Table, e.Err)
}

func (e *RowTransferError) Unwrap() error { return e.Err }

// Counts tallies row outcomes.
type Counts struct {
	Attempted        int
	Inserted         int
	SkippedDuplicate int
	Failed           int
}

func (c *Counts) add(o RowOutcome) {
	c.Attempted++
	switch o.Kind {
	case Inserted:
		c.Inserted++
	case SkippedDuplicate:
		c.SkippedDuplicate++
	case Failed:
		c.Failed++
	}
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
