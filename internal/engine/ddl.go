package engine

import (
	"context"
	"errors"

	"records-migrate/internal/script"
	"records-migrate/internal/store"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ApplyResult reports a best-effort script run.
type ApplyResult struct {
	Total    int
	Applied  int
	Warnings []*StatementError
}

// Err folds all warnings into one error, or nil.
func (r ApplyResult) Err() error {
	var err error
	for _, w := range r.Warnings {
		err = multierr.Append(err, w)
	}
	return err
}

// ApplyScript splits src on marker and executes each statement on exec. A
// failing statement is recorded as a warning and the next one still runs.
// A script that cannot be read to the end applies the statements before the
// failing line and records the read failure as one more warning.
func ApplyScript(ctx context.Context, exec store.Executor, src, marker string, log *zap.Logger) ApplyResult {
	if log == nil {
		log = zap.NewNop()
	}
	stmts, err := script.Split(src, marker)
	res := ApplyStatements(ctx, exec, stmts, log)
	if err != nil {
		w := &StatementError{Index: len(stmts), Err: err}
		var readErr *script.ReadError
		if errors.As(err, &readErr) {
			w.Line = readErr.Line
		}
		res.Total++
		res.Warnings = append(res.Warnings, w)
		log.Warn("Script not read to the end", zap.Int("line", w.Line), zap.Error(err))
	}
	return res
}

// ApplyStatements executes already split statements in order.
func ApplyStatements(ctx context.Context, exec store.Executor, stmts []script.Statement, log *zap.Logger) ApplyResult {
	if log == nil {
		log = zap.NewNop()
	}
	res := ApplyResult{Total: len(stmts)}
	for _, st := range stmts {
		if _, err := exec.ExecContext(ctx, st.SQL); err != nil {
			w := &StatementError{Index: st.Index, Line: st.Line, SQL: st.SQL, Err: err}
			res.Warnings = append(res.Warnings, w)
			log.Warn("Statement failed", zap.Int("statement", st.Index+1), zap.Int("line", st.Line), zap.Error(err))
			continue
		}
		res.Applied++
		log.Debug("Statement applied", zap.Int("statement", st.Index+1), zap.Int("line", st.Line))
	}
	return res
}
