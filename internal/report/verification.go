// Package report renders run results for people and exports query results
// to tabular sinks.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"records-migrate/internal/engine"

	"gopkg.in/yaml.v3"
)

// Format is an output format for the verification report.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat parses a format name. The empty string yields Text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", Text:
		return Text, nil
	case JSON:
		return JSON, nil
	case YAML, "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

type tableDoc struct {
	Table            string `json:"table" yaml:"table"`
	SourceCount      *int64 `json:"source_count" yaml:"source_count"`
	DestinationCount *int64 `json:"destination_count" yaml:"destination_count"`
	Matched          bool   `json:"matched" yaml:"matched"`
	Error            string `json:"error,omitempty" yaml:"error,omitempty"`
}

type reportDoc struct {
	OverallSuccess bool       `json:"overall_success" yaml:"overall_success"`
	Tables         []tableDoc `json:"tables" yaml:"tables"`
}

func toDoc(r *engine.Report) reportDoc {
	doc := reportDoc{OverallSuccess: r.OverallSuccess, Tables: make([]tableDoc, 0, len(r.Entries))}
	for _, e := range r.Entries {
		t := tableDoc{Table: e.Table, Matched: e.Matched, Error: checkError(e)}
		if e.SourceErr == nil {
			n := e.SourceCount
			t.SourceCount = &n
		}
		if e.DestinationErr == nil {
			n := e.DestinationCount
			t.DestinationCount = &n
		}
		doc.Tables = append(doc.Tables, t)
	}
	return doc
}

func checkError(e engine.TableCheck) string {
	var parts []string
	if e.SourceErr != nil {
		parts = append(parts, "source: "+e.SourceErr.Error())
	}
	if e.DestinationErr != nil {
		parts = append(parts, "destination: "+e.DestinationErr.Error())
	}
	return strings.Join(parts, "; ")
}

// WriteVerification renders r to w.
func WriteVerification(w io.Writer, r *engine.Report, format Format) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toDoc(r))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toDoc(r)); err != nil {
			return err
		}
		return enc.Close()
	case Text, "":
		return writeVerificationText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func count(n int64, err error) string {
	if err != nil {
		return "ERROR"
	}
	return fmt.Sprintf("%d", n)
}

func writeVerificationText(w io.Writer, r *engine.Report) error {
	b := &strings.Builder{}
	fmt.Fprintln(b, "\n📊 Verification Report:")
	for i, e := range r.Entries {
		icon := "✓"
		status := "OK"
		if !e.Matched {
			icon = "!"
			status = "MISMATCH"
		}
		fmt.Fprintf(b, "[%s] [%02d/%02d] %-24s : source %s / destination %s - %s\n",
			icon, i+1, len(r.Entries), e.Table,
			count(e.SourceCount, e.SourceErr), count(e.DestinationCount, e.DestinationErr), status)
		if msg := checkError(e); msg != "" {
			fmt.Fprintf(b, "    └ Error: %s\n", msg)
		}
	}
	fmt.Fprintln(b, "--------------------------------------------------")
	switch {
	case r.OverallSuccess:
		fmt.Fprintln(b, "Overall: OK")
	case len(r.Entries) == 0:
		fmt.Fprintln(b, "Overall: FAILED (no tables verified)")
	default:
		fmt.Fprintf(b, "Overall: FAILED (%d of %d tables differ)\n", len(r.Mismatched()), len(r.Entries))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMigration prints one line per migrated table.
func WriteMigration(w io.Writer, results []engine.MigrationResult) error {
	b := &strings.Builder{}
	fmt.Fprintln(b, "\n📦 Data Migration (Dependency Order):")
	total := 0
	for i, r := range results {
		icon := "✓"
		status := "OK"
		switch {
		case r.Err != nil:
			icon, status = "!", "INCOMPLETE"
		case r.NoOp:
			status = "EMPTY"
		}
		fmt.Fprintf(b, "[%s] [%02d/%02d] %-24s : %d inserted, %d skipped, %d failed of %d - %s\n",
			icon, i+1, len(results), r.Table, r.Inserted, r.SkippedDuplicate, r.Failed, r.SourceRows, status)
		if r.Err != nil {
			fmt.Fprintf(b, "    └ Error: %v\n", r.Err)
		}
		total += r.Inserted
	}
	fmt.Fprintln(b, "--------------------------------------------------")
	fmt.Fprintf(b, "Total Inserted: %d\n", total)
	_, err := io.WriteString(w, b.String())
	return err
}
