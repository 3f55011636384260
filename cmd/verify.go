package cmd

import (
	"os"

	"records-migrate/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare row counts between source and destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, mc, err := newOrchestrator()
		if err != nil {
			return err
		}
		format, err := report.ParseFormat(reportFormat)
		if err != nil {
			return err
		}

		r, err := o.Verify(cmd.Context())
		if err != nil {
			return err
		}
		if err := report.WriteVerification(os.Stdout, r, format); err != nil {
			return err
		}
		if err := r.Err(); err != nil && mc.StrictVerify {
			return err
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&reportFormat, "format", "text", "Report format (text, json, yaml)")
	verifyCmd.Flags().Bool("strict", true, "Exit with code 2 when counts differ")
	viper.BindPFlag("migration.strict_verify", verifyCmd.Flags().Lookup("strict"))
}
