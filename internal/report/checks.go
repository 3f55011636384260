package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"records-migrate/internal/engine"

	"gopkg.in/yaml.v3"
)

type checkDoc struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type checksDoc struct {
	OverallSuccess bool       `json:"overall_success" yaml:"overall_success"`
	Checks         []checkDoc `json:"checks" yaml:"checks"`
}

func value(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toChecksDoc(results engine.CheckResults) checksDoc {
	doc := checksDoc{OverallSuccess: results.Err() == nil, Checks: make([]checkDoc, 0, len(results))}
	for _, r := range results {
		c := checkDoc{Name: r.Name, Passed: r.Passed, Value: value(r.Value)}
		if r.Err != nil {
			c.Error = r.Err.Error()
		}
		doc.Checks = append(doc.Checks, c)
	}
	return doc
}

// WriteChecks renders data quality check results to w.
func WriteChecks(w io.Writer, results engine.CheckResults, format Format) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toChecksDoc(results))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toChecksDoc(results)); err != nil {
			return err
		}
		return enc.Close()
	case Text, "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	b := &strings.Builder{}
	fmt.Fprintln(b, "\n🔎 Data Quality Checks:")
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(b, "[%s] %s\n", status, r.Name)
		if r.Err != nil {
			fmt.Fprintf(b, "    └ Error: %v\n", r.Err)
		}
	}
	fmt.Fprintln(b, "--------------------------------------------------")
	if failed := results.Failed(); len(failed) > 0 {
		fmt.Fprintf(b, "Overall: FAILED (%d of %d checks)\n", len(failed), len(results))
	} else {
		fmt.Fprintln(b, "Overall: OK")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
