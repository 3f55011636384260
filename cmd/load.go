package cmd

import (
	"context"
	"fmt"
	"strings"

	"records-migrate/internal/engine"
	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	loadFile        string
	loadTable       string
	loadUnique      []string
	loadCommitEvery int
	loadTarget      string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a CSV file into a table, skipping duplicate rows",
	Example: `  records-migrate load --file data/students.csv --table students --unique email
  records-migrate load --file data/courses.csv --table courses --unique course_code`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := endpointConfig(loadTarget)
		if err != nil {
			return err
		}
		policy, err := engine.ParsePolicy(viper.GetString("migration.row_failure_policy"))
		if err != nil {
			return err
		}

		src, err := engine.OpenCSV(loadFile)
		if err != nil {
			return err
		}
		defer src.Close()

		s, err := store.Open(cmd.Context(), loadTarget, cfg, Log)
		if err != nil {
			return err
		}
		defer s.Close()

		unique := loadUnique
		if len(unique) == 0 {
			unique = naturalKey(cmd.Context(), s, loadTable, src.Columns())
		}

		progress := newProgress()
		l := &engine.Loader{
			Dialect:       s.Dialect,
			Policy:        policy,
			UniqueColumns: unique,
			CommitEvery:   loadCommitEvery,
			Log:           Log,
			Progress:      progress.observer(),
		}
		res, err := l.Load(cmd.Context(), s.DB, src, loadTable)
		progress.Stop()

		fmt.Printf("📥 %s: loaded %d, skipped %d duplicates, %d failed (%d rows read)\n",
			loadTable, res.Inserted, res.SkippedDuplicate, res.Failed, res.Attempted)
		if err != nil {
			return err
		}
		Log.Info("Load done", zap.String("file", loadFile), zap.Duration("elapsed", res.Duration))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "CSV file with a header row")
	loadCmd.Flags().StringVar(&loadTable, "table", "", "Target table")
	loadCmd.Flags().StringSliceVar(&loadUnique, "unique", nil, "Columns identifying repeated rows within the file (default: the table's unique key)")
	loadCmd.Flags().IntVar(&loadCommitEvery, "commit-every", 0, "Commit every N rows (0 commits once)")
	loadCmd.Flags().StringVar(&loadTarget, "target", store.Destination, "Endpoint to load into (source, destination)")
	loadCmd.MarkFlagRequired("file")
	loadCmd.MarkFlagRequired("table")
}

// naturalKey reads the key identifying rows of table from the store's schema.
// Without one, repeated rows within the file reach the store and are only
// caught by its own constraints.
func naturalKey(ctx context.Context, s *store.Store, table string, columns []string) []string {
	tables, err := schema.Analyze(ctx, s.DB, s.Dialect, viper.GetString("migration.schema"))
	if err != nil {
		Log.Warn("Schema analysis failed, no in-file duplicate detection", zap.Error(err))
		return nil
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, table) {
			key := t.NaturalKey(columns)
			Log.Info("Unique columns from schema", zap.String("table", table), zap.Strings("columns", key))
			return key
		}
	}
	Log.Warn("Table not found in schema", zap.String("table", table))
	return nil
}
