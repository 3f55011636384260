package cmd

import (
	"fmt"

	"records-migrate/internal/engine"
	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanMode string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the destination in reverse dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := endpointConfig(store.Destination)
		if err != nil {
			return err
		}
		mc, err := migrationConfig()
		if err != nil {
			return err
		}
		mode, err := engine.ParseCleanupMode(cleanMode)
		if err != nil {
			return err
		}
		if mode == engine.CleanupNone {
			return fmt.Errorf("clean: --mode must be delete or drop")
		}

		dst, err := store.Open(ctx, store.Destination, cfg, Log)
		if err != nil {
			return err
		}
		defer dst.Close()

		// 1. Analyze
		Log.Info("Analyzing destination schema...")
		var specs []schema.TableSpec
		tables, err := schema.Analyze(ctx, dst.DB, dst.Dialect, mc.SchemaName)
		if err != nil {
			Log.Warn("Schema analysis failed, using configured order", zap.Error(err))
			specs = schema.SpecsFromNames(mc.Tables)
		} else {
			var warnings []string
			specs, warnings = schema.ResolveOrder(mc.Tables, tables)
			for _, w := range warnings {
				Log.Warn("Table order", zap.String("warning", w))
			}
		}

		res := engine.Clean(ctx, dst, mode, specs, mc.Views, Log)
		fmt.Printf("🧹 Cleaned %d objects (%s), %d warnings\n", len(res.Cleaned), mode, len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Printf("    └ Warning: %v\n", w)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&cleanMode, "mode", string(engine.CleanupDelete), "Cleanup mode (delete, drop)")
}
