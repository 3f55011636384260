// Package script splits SQL scripts into independently executable statements.
//
// A script is divided by a batch separator line: a line whose only content,
// ignoring surrounding whitespace, is the marker token (conventionally "GO").
// The match is case-sensitive. Lines starting with "--" are comments and are
// dropped; fragments left empty after that are discarded.
//
// The separator is recognised purely line by line. A marker line inside a
// /* */ block comment or a multi-line string literal still splits the
// script, matching how the sqlcmd tool family treats it.
package script

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultMarker is the batch separator used by SQL Server tooling.
const DefaultMarker = "GO"

// MaxLineSize is the longest script line Parse accepts.
const MaxLineSize = 16 * 1024 * 1024

// ReadError reports a script that could not be read past Line.
type ReadError struct {
	Line int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read script at line %d: %v", e.Line, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Statement is one executable unit of a script.
type Statement struct {
	Index int    // 0-based position among the returned statements
	Line  int    // 1-based line of the first SQL line in the script
	SQL   string // trimmed statement text without comment lines
}

// Parse reads a script from r and splits it on marker. On a read failure
// the statements completed before the failing line are returned together
// with a *ReadError.
func Parse(r io.Reader, marker string) ([]Statement, error) {
	if marker == "" {
		marker = DefaultMarker
	}

	var (
		stmts []Statement
		buf   []string
		start int
		line  int
	)

	flush := func() {
		sql := strings.TrimSpace(strings.Join(buf, "\n"))
		if sql != "" {
			stmts = append(stmts, Statement{Index: len(stmts), Line: start, SQL: sql})
		}
		buf = buf[:0]
		start = 0
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	for scanner.Scan() {
		line++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)

		switch {
		case trimmed == marker:
			flush()
		case strings.HasPrefix(trimmed, "--"):
			// comment line
		default:
			if start == 0 && trimmed != "" {
				start = line
			}
			buf = append(buf, strings.TrimRight(text, "\r"))
		}
	}
	if err := scanner.Err(); err != nil {
		return stmts, &ReadError{Line: line + 1, Err: err}
	}
	flush()

	return stmts, nil
}

// Split is Parse over an in-memory script. It fails only on a line longer
// than MaxLineSize.
func Split(script, marker string) ([]Statement, error) {
	return Parse(strings.NewReader(script), marker)
}

// Join renders statements back into a script separated by marker lines.
func Join(stmts []Statement, marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}
	var b strings.Builder
	for i, s := range stmts {
		if i > 0 {
			b.WriteString("\n" + marker + "\n")
		}
		b.WriteString(s.SQL)
	}
	return b.String()
}
