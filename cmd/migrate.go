package cmd

import (
	"fmt"
	"os"
	"time"

	"records-migrate/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	dryRun       bool
	reportFormat string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate schema, data and views from source to destination, then verify",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, mc, err := newOrchestrator()
		if err != nil {
			return err
		}
		format, err := report.ParseFormat(reportFormat)
		if err != nil {
			return err
		}

		Log.Info("Starting migration",
			zap.String("source", o.Source.Driver),
			zap.String("destination", o.Destination.Driver),
			zap.String("cleanup", string(mc.Cleanup)),
			zap.String("policy", string(mc.Policy)),
		)

		// Dry Run
		if dryRun {
			Log.Info("Dry-run mode active: nothing will be written")
			specs, warnings, err := o.ResolveOrder(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("🔍 Migration Order:\n")
			for i, s := range specs {
				fmt.Printf("[%02d] %s (Dependencies: %v)\n", i+1, s.Name, s.Dependencies)
				for _, c := range s.Columns {
					fmt.Printf("       %s\n", c)
				}
				for _, fk := range s.ForeignKeys {
					fmt.Printf("       FK %s\n", fk)
				}
			}
			for _, w := range warnings {
				fmt.Printf("    └ Warning: %s\n", w)
			}
			return nil
		}

		start := time.Now()
		progress := newProgress()
		o.Progress = progress.observer()
		res, err := o.Run(cmd.Context())
		progress.Stop()
		if err != nil {
			return err
		}

		if err := report.WriteMigration(os.Stdout, res.Data); err != nil {
			return err
		}
		if err := report.WriteVerification(os.Stdout, res.Report, format); err != nil {
			return err
		}
		Log.Info("Migration done",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("schema_warnings", len(res.Schema.Warnings)),
			zap.Int("view_warnings", len(res.Views.Warnings)),
			zap.Int("cleanup_warnings", len(res.Cleanup.Warnings)),
		)

		if err := res.Report.Err(); err != nil && mc.StrictVerify {
			return err
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	// CLI Flags
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Connect and print the table order without writing")
	migrateCmd.Flags().String("cleanup", "", "Destination cleanup before the schema stage (none, delete, drop)")
	migrateCmd.Flags().String("policy", "", "Row failure policy (fail-fast, continue)")
	migrateCmd.Flags().StringSliceP("tables", "t", nil, "Tables to migrate in order (comma-separated)")
	migrateCmd.Flags().StringVar(&reportFormat, "format", "text", "Verification report format (text, json, yaml)")

	viper.BindPFlag("migration.cleanup", migrateCmd.Flags().Lookup("cleanup"))
	viper.BindPFlag("migration.row_failure_policy", migrateCmd.Flags().Lookup("policy"))
	viper.BindPFlag("migration.tables", migrateCmd.Flags().Lookup("tables"))
}
