package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MigrationResult describes the copy of one table.
type MigrationResult struct {
	Table                 string
	SourceRows            int
	DestinationRowsBefore int64
	Counts
	// NoOp is set when the source table was empty.
	NoOp     bool
	Err      error
	Duration time.Duration
}

// DataMigrator copies rows table by table from one store to another.
type DataMigrator struct {
	Policy   FailurePolicy
	Log      *zap.Logger
	Progress Progress
}

// Migrate copies every table of specs in order. A failing table is recorded
// in its result and the next table is still attempted.
func (m *DataMigrator) Migrate(ctx context.Context, src, dst *store.Store, specs []schema.TableSpec) []MigrationResult {
	results := make([]MigrationResult, 0, len(specs))
	for i, spec := range specs {
		if ctx.Err() != nil {
			results = append(results, MigrationResult{Table: spec.Name, Err: ctx.Err()})
			continue
		}
		r := m.migrateTable(ctx, src, dst, spec)
		m.log().Info("Table migrated",
			zap.String("table", spec.Name),
			zap.String("position", fmt.Sprintf("%d/%d", i+1, len(specs))),
			zap.Int("source_rows", r.SourceRows),
			zap.Int("inserted", r.Inserted),
			zap.Int("skipped", r.SkippedDuplicate),
			zap.Int("failed", r.Failed),
			zap.Bool("noop", r.NoOp),
			zap.Duration("elapsed", r.Duration),
		)
		if r.Err != nil {
			m.log().Warn("Table migration incomplete", zap.String("table", spec.Name), zap.Error(r.Err))
		}
		results = append(results, r)
	}
	return results
}

func (m *DataMigrator) log() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}

func (m *DataMigrator) migrateTable(ctx context.Context, src, dst *store.Store, spec schema.TableSpec) (res MigrationResult) {
	table := spec.Name
	res.Table = table
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	progress := progressOrNop(m.Progress)
	log := m.log().With(zap.String("table", table))

	// Check existing row count
	before, err := dst.Count(ctx, nil, table)
	if err != nil {
		res.Err = err
		return res
	}
	res.DestinationRowsBefore = before

	total := -1
	if n, err := src.Count(ctx, nil, table); err == nil {
		total = int(n)
	}

	query, _, err := sq.Select("*").From(table).ToSql()
	if err != nil {
		res.Err = err
		return res
	}
	rows, err := NewQuerySource(ctx, src.DB, query)
	if err != nil {
		res.Err = fmt.Errorf("read %s from %s: %w", table, src.Name, err)
		return res
	}
	defer rows.Close()

	first, err := rows.Next()
	if errors.Is(err, io.EOF) {
		res.NoOp = true
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("read %s from %s: %w", table, src.Name, err)
		return res
	}

	// Probe before the write transaction; some drivers serialize on one connection.
	dstCols, err := dst.Columns(ctx, table)
	if err != nil {
		res.Err = err
		return res
	}
	if err := sameColumns(rows.Columns(), dstCols); err != nil {
		res.Err = fmt.Errorf("%s: %w", table, err)
		return res
	}

	ins, err := newInserter(dst.Dialect, table, rows.Columns(), nil)
	if err != nil {
		res.Err = err
		return res
	}

	tx, err := dst.DB.BeginTx(ctx, nil)
	if err != nil {
		res.Err = fmt.Errorf("begin on %s: %w", dst.Name, err)
		return res
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	explicitKeys := false
	if dst.Dialect.SupportsExplicitKeyInsert() && spec.NeedsExplicitKeys() {
		if err := dst.Dialect.BeforeTable(ctx, tx, table); err != nil {
			log.Warn("Explicit key insertion not enabled", zap.Error(err))
		} else {
			explicitKeys = true
		}
	}

	progress.Start(table, total)
	row, readErr := first, error(nil)
	for readErr == nil {
		res.SourceRows++
		o := ins.insert(ctx, tx, row.Values)
		res.add(o)
		progress.Row(table, o)

		if o.Kind == Failed {
			rowErr := &RowTransferError{Table: table, Row: res.Attempted, Err: o.Err}
			if m.Policy != Continue || ctx.Err() != nil {
				res.Err = rowErr
				break
			}
			log.Warn("Row failed", zap.Int("row", res.Attempted), zap.Error(o.Err))
		}
		row, readErr = rows.Next()
	}
	progress.Done(table)
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		res.Err = fmt.Errorf("read %s from %s: %w", table, src.Name, readErr)
	}

	if explicitKeys {
		if err := dst.Dialect.AfterTable(ctx, tx, table); err != nil {
			log.Warn("Explicit key insertion not disabled", zap.Error(err))
		}
	}

	err = tx.Commit()
	tx = nil
	if err != nil {
		res.Err = multierr.Append(res.Err, fmt.Errorf("commit %s on %s: %w", table, dst.Name, err))
	}
	return res
}

// sameColumns compares two column sets ignoring order and case.
func sameColumns(src, dst []string) error {
	want := make(map[string]bool, len(dst))
	for _, c := range dst {
		want[strings.ToLower(c)] = true
	}
	var missing []string
	for _, c := range src {
		if !want[strings.ToLower(c)] {
			missing = append(missing, c)
		}
		delete(want, strings.ToLower(c))
	}
	var extra []string
	for _, c := range dst {
		if want[strings.ToLower(c)] {
			extra = append(extra, c)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing at destination %v, only at destination %v", ErrColumnMismatch, missing, extra)
}
