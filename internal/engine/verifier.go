package engine

import (
	"context"
	"fmt"

	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"go.uber.org/zap"
)

// TableCheck compares the row counts of one table. A count is meaningful only
// when its error is nil.
type TableCheck struct {
	Table            string
	SourceCount      int64
	DestinationCount int64
	SourceErr        error
	DestinationErr   error
	Matched          bool
}

// Report is the outcome of a verification run.
type Report struct {
	Entries        []TableCheck
	OverallSuccess bool
}

// Entry returns the check for table.
func (r *Report) Entry(table string) (TableCheck, bool) {
	for _, e := range r.Entries {
		if e.Table == table {
			return e, true
		}
	}
	return TableCheck{}, false
}

// Mismatched returns the names of the tables that did not match.
func (r *Report) Mismatched() []string {
	var out []string
	for _, e := range r.Entries {
		if !e.Matched {
			out = append(out, e.Table)
		}
	}
	return out
}

// Err returns nil on success and an error wrapping ErrVerificationFailed
// otherwise.
func (r *Report) Err() error {
	switch {
	case r.OverallSuccess:
		return nil
	case len(r.Entries) == 0:
		return fmt.Errorf("%w: no tables to verify", ErrVerificationFailed)
	default:
		return fmt.Errorf("%w: %v", ErrVerificationFailed, r.Mismatched())
	}
}

// Verify counts every table on both stores. It only reads. An empty table
// list fails: nothing was shown to have been migrated.
func Verify(ctx context.Context, src, dst *store.Store, specs []schema.TableSpec, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}
	report := &Report{OverallSuccess: len(specs) > 0}
	if len(specs) == 0 {
		log.Warn("No tables to verify")
	}
	for _, spec := range specs {
		check := TableCheck{Table: spec.Name}
		check.SourceCount, check.SourceErr = src.Count(ctx, nil, spec.Name)
		check.DestinationCount, check.DestinationErr = dst.Count(ctx, nil, spec.Name)
		check.Matched = check.SourceErr == nil && check.DestinationErr == nil &&
			check.SourceCount == check.DestinationCount

		if !check.Matched {
			report.OverallSuccess = false
			log.Warn("Row counts differ",
				zap.String("table", spec.Name),
				zap.Int64("source", check.SourceCount),
				zap.Int64("destination", check.DestinationCount),
				zap.NamedError("source_error", check.SourceErr),
				zap.NamedError("destination_error", check.DestinationErr),
			)
		} else {
			log.Info("Row counts match", zap.String("table", spec.Name), zap.Int64("rows", check.SourceCount))
		}
		report.Entries = append(report.Entries, check)
	}
	return report
}
