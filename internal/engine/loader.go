package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"records-migrate/internal/dialect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// inserter runs one INSERT template per row and classifies the result.
type inserter struct {
	dialect dialect.Dialect
	table   string
	query   string
	width   int

	// Track used values for UNIQUE columns
	uniqueIdx []int
	used      map[string]bool
}

func newInserter(d dialect.Dialect, table string, cols, unique []string) (*inserter, error) {
	ins := &inserter{
		dialect: d,
		table:   table,
		query:   d.InsertQuery(table, cols),
		width:   len(cols),
		used:    make(map[string]bool),
	}
	for _, u := range unique {
		idx := -1
		for i, c := range cols {
			if strings.EqualFold(c, u) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unique column %q is not among the columns of %s", u, table)
		}
		ins.uniqueIdx = append(ins.uniqueIdx, idx)
	}
	return ins, nil
}

// key returns the in-batch identity of values, or "" when it has none.
func (ins *inserter) key(values []any) string {
	if len(ins.uniqueIdx) == 0 {
		return ""
	}
	parts := make([]string, len(ins.uniqueIdx))
	for i, idx := range ins.uniqueIdx {
		// NULLs never collide
		if values[idx] == nil {
			return ""
		}
		parts[i] = fmt.Sprintf("%v", values[idx])
	}
	return strings.Join(parts, "\x00")
}

func (ins *inserter) insert(ctx context.Context, tx *sql.Tx, values []any) RowOutcome {
	if len(values) != ins.width {
		return RowOutcome{Kind: Failed, Err: fmt.Errorf("row has %d fields, want %d", len(values), ins.width)}
	}

	key := ins.key(values)
	if key != "" && ins.used[key] {
		return RowOutcome{Kind: SkippedDuplicate}
	}

	if err := ins.dialect.BeginRow(ctx, tx); err != nil {
		return RowOutcome{Kind: Failed, Err: err}
	}
	res, err := tx.ExecContext(ctx, ins.query, values...)
	if endErr := ins.dialect.EndRow(ctx, tx, err != nil); endErr != nil {
		return RowOutcome{Kind: Failed, Err: multierr.Append(err, endErr)}
	}
	if err != nil {
		if ins.dialect.IsDuplicateKey(err) {
			ins.mark(key)
			return RowOutcome{Kind: SkippedDuplicate}
		}
		return RowOutcome{Kind: Failed, Err: err}
	}
	// ON CONFLICT DO NOTHING reports a skipped row as zero rows affected
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		ins.mark(key)
		return RowOutcome{Kind: SkippedDuplicate}
	}
	ins.mark(key)
	return RowOutcome{Kind: Inserted}
}

func (ins *inserter) mark(key string) {
	if key != "" {
		ins.used[key] = true
	}
}

// Loader inserts rows from a RowSource into one table.
type Loader struct {
	Dialect dialect.Dialect
	Policy  FailurePolicy
	// UniqueColumns identify rows repeated within the same batch.
	UniqueColumns []string
	// CommitEvery commits after every N attempted rows. Zero commits once at the end.
	CommitEvery int
	Log         *zap.Logger
	Progress    Progress
}

// LoadResult reports a finished or aborted load.
type LoadResult struct {
	Table string
	Counts
	Commits  int
	Duration time.Duration
}

// Load reads src to the end and inserts every row into table.
//
// Duplicate rows are skipped. Under FailFast the first other failure stops the
// load: rows inserted before it are committed and the partial result is
// returned with a *RowTransferError. Under Continue failed rows are counted
// and the load goes on.
func (l *Loader) Load(ctx context.Context, db *sql.DB, src RowSource, table string) (res LoadResult, err error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	progress := progressOrNop(l.Progress)
	res.Table = table
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	cols := src.Columns()
	if len(cols) == 0 {
		return res, fmt.Errorf("load %s: source has no columns", table)
	}
	ins, err := newInserter(l.Dialect, table, cols, l.UniqueColumns)
	if err != nil {
		return res, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("load %s: begin: %w", table, err)
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	commit := func() error {
		if err := tx.Commit(); err != nil {
			tx = nil
			return fmt.Errorf("load %s: commit: %w", table, err)
		}
		tx = nil
		res.Commits++
		return nil
	}

	progress.Start(table, -1)
	defer progress.Done(table)

	var fatal error
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fatal = fmt.Errorf("load %s: read row %d: %w", table, res.Attempted+1, err)
			break
		}

		o := ins.insert(ctx, tx, row.Values)
		res.add(o)
		progress.Row(table, o)

		if o.Kind == Failed {
			rowErr := &RowTransferError{Table: table, Row: res.Attempted, Err: o.Err}
			if l.Policy != Continue || ctx.Err() != nil {
				fatal = rowErr
				break
			}
			log.Warn("Row failed", zap.String("table", table), zap.Int("row", res.Attempted), zap.Error(o.Err))
		}

		if l.CommitEvery > 0 && res.Attempted%l.CommitEvery == 0 {
			if err := commit(); err != nil {
				return res, err
			}
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return res, fmt.Errorf("load %s: begin: %w", table, err)
			}
		}
	}

	if err := commit(); err != nil {
		return res, multierr.Append(fatal, err)
	}

	fields := []zap.Field{
		zap.String("table", table),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.SkippedDuplicate),
		zap.Int("failed", res.Failed),
	}
	if fatal != nil {
		log.Error("Load aborted", append(fields, zap.Error(fatal))...)
		return res, fatal
	}
	log.Info("Load finished", fields...)
	return res, nil
}
