package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"records-migrate/internal/engine"
	"records-migrate/internal/report"
	"records-migrate/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkTarget string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run data quality checks against an endpoint",
	Long: `Runs the named queries under "checks" in the config file against an
endpoint. Each query returns one value; true or non-zero passes.
Exits with code 2 when any check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := endpointConfig(checkTarget)
		if err != nil {
			return err
		}
		format, err := report.ParseFormat(reportFormat)
		if err != nil {
			return err
		}
		checks, err := configuredChecks()
		if err != nil {
			return err
		}

		s, err := store.Open(cmd.Context(), checkTarget, cfg, Log)
		if err != nil {
			return err
		}
		defer s.Close()

		return runCheckSuite(cmd.Context(), os.Stdout, s, checks, format)
	},
}

func init() {
	RootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkTarget, "target", store.Destination, "Endpoint to check (source, destination)")
	checkCmd.Flags().StringVar(&reportFormat, "format", "text", "Report format (text, json, yaml)")
}

// configuredChecks reads the "checks" list, falling back to engine.DefaultChecks.
func configuredChecks() ([]engine.Check, error) {
	var checks []engine.Check
	if err := viper.UnmarshalKey("checks", &checks); err != nil {
		return nil, fmt.Errorf("checks: %w", err)
	}
	for i, c := range checks {
		if c.Query == "" {
			return nil, fmt.Errorf("checks[%d] %q: query is required", i, c.Name)
		}
		if c.Name == "" {
			checks[i].Name = c.Query
		}
	}
	if len(checks) == 0 {
		return engine.DefaultChecks, nil
	}
	return checks, nil
}

func runCheckSuite(ctx context.Context, w io.Writer, s *store.Store, checks []engine.Check, format report.Format) error {
	results := engine.RunChecks(ctx, s.DB, checks, Log)
	if err := report.WriteChecks(w, results, format); err != nil {
		return err
	}
	return results.Err()
}
