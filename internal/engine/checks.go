package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"records-migrate/internal/store"

	"go.uber.org/zap"
)

// ErrCheckFailed is returned when a data quality check does not pass.
var ErrCheckFailed = errors.New("data quality check failed")

// Check is a named query whose first value of the first row decides the
// outcome: true, a non-zero number or "yes"/"pass" passes.
type Check struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Query string `mapstructure:"query" yaml:"query"`
}

// DefaultChecks are run when none are configured.
var DefaultChecks = []Check{
	{Name: "Students loaded", Query: "SELECT CASE WHEN COUNT(*) > 0 THEN 1 ELSE 0 END FROM students"},
	{Name: "Courses loaded", Query: "SELECT CASE WHEN COUNT(*) > 0 THEN 1 ELSE 0 END FROM courses"},
	{Name: "No null emails", Query: "SELECT CASE WHEN COUNT(*) = 0 THEN 1 ELSE 0 END FROM students WHERE email IS NULL"},
}

// CheckResult is the outcome of one check. Value is what the query returned.
type CheckResult struct {
	Name   string
	Passed bool
	Value  any
	Err    error
}

// CheckResults is the outcome of a check run, in configured order.
type CheckResults []CheckResult

// Failed returns the names of the checks that did not pass.
func (r CheckResults) Failed() []string {
	var out []string
	for _, c := range r {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Err returns nil when every check passed.
func (r CheckResults) Err() error {
	if failed := r.Failed(); len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrCheckFailed, strings.Join(failed, ", "))
	}
	return nil
}

// RunChecks runs every check on exec. A failing query fails its check only.
func RunChecks(ctx context.Context, exec store.Executor, checks []Check, log *zap.Logger) CheckResults {
	if log == nil {
		log = zap.NewNop()
	}
	results := make(CheckResults, 0, len(checks))
	for _, c := range checks {
		r := CheckResult{Name: c.Name}
		r.Value, r.Err = firstValue(ctx, exec, c.Query)
		r.Passed = r.Err == nil && truthy(r.Value)
		if r.Passed {
			log.Info("Check passed", zap.String("check", c.Name))
		} else {
			log.Warn("Check failed", zap.String("check", c.Name), zap.Any("value", r.Value), zap.Error(r.Err))
		}
		results = append(results, r)
	}
	return results
}

func firstValue(ctx context.Context, exec store.Executor, query string) (any, error) {
	src, err := NewQuerySource(ctx, exec, query)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	row, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("query returned no rows")
	}
	if err != nil {
		return nil, err
	}
	if len(row.Values) == 0 {
		return nil, errors.New("query returned no columns")
	}
	return row.Values[0], nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case []byte:
		return truthyString(string(x))
	case string:
		return truthyString(x)
	default:
		return truthyString(fmt.Sprint(x))
	}
}

func truthyString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "t", "true", "y", "yes", "pass":
		return true
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f != 0
}
