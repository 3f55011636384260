package engine

import (
	"context"
	"fmt"
	"strings"

	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// CleanupMode selects what happens to the destination before the schema stage.
type CleanupMode string

const (
	CleanupNone   CleanupMode = "none"
	CleanupDelete CleanupMode = "delete" // remove rows, keep tables
	CleanupDrop   CleanupMode = "drop"   // drop views, then tables
)

// ParseCleanupMode parses a mode name. The empty string yields CleanupNone.
func ParseCleanupMode(s string) (CleanupMode, error) {
	switch CleanupMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CleanupNone:
		return CleanupNone, nil
	case CleanupDelete:
		return CleanupDelete, nil
	case CleanupDrop:
		return CleanupDrop, nil
	default:
		return "", fmt.Errorf("unknown cleanup mode %q (want none, delete or drop)", s)
	}
}

// CleanupResult lists what was cleaned and what failed.
type CleanupResult struct {
	Mode     CleanupMode
	Cleaned  []string
	Warnings []error
}

// Err folds the warnings into one error, or nil.
func (r CleanupResult) Err() error {
	return multierr.Combine(r.Warnings...)
}

// Clean empties the destination in reverse dependency order. Every statement
// runs on its own and failures are collected as warnings.
func Clean(ctx context.Context, dst *store.Store, mode CleanupMode, tables []schema.TableSpec, views []string, log *zap.Logger) CleanupResult {
	if log == nil {
		log = zap.NewNop()
	}
	res := CleanupResult{Mode: mode}
	if mode == CleanupNone || mode == "" {
		return res
	}

	d := dst.Dialect
	exec := func(object, query string) bool {
		if _, err := dst.DB.ExecContext(ctx, query); err != nil {
			log.Warn("Cleanup statement failed", zap.String("object", object), zap.Error(err))
			res.Warnings = append(res.Warnings, fmt.Errorf("clean %s: %w", object, err))
			return false
		}
		return true
	}

	if mode == CleanupDrop {
		for i := len(views) - 1; i >= 0; i-- {
			if exec(views[i], d.DropViewQuery(views[i])) {
				res.Cleaned = append(res.Cleaned, views[i])
			}
		}
	}

	total := len(tables)
	count := 0
	for i := len(tables) - 1; i >= 0; i-- {
		name := tables[i].Name
		count++

		var ok bool
		if mode == CleanupDrop {
			ok = exec(name, d.DropTableQuery(name))
		} else {
			ok = exec(name, d.DeleteQuery(name))
			// Reset IDENTITY seed after DELETE
			if ok && tables[i].NeedsExplicitKeys() {
				if q := d.ResetIdentityQuery(name); q != "" {
					exec(name, q)
				}
			}
		}
		if ok {
			res.Cleaned = append(res.Cleaned, name)
		}

		if count%5 == 0 || count == total {
			log.Info("Cleaning tables", zap.Int("done", count), zap.Int("total", total))
		}
	}

	log.Info("Destination cleaned", zap.String("mode", string(mode)), zap.Int("objects", len(res.Cleaned)), zap.Int("warnings", len(res.Warnings)))
	return res
}
