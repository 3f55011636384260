package cmd

import (
	"fmt"

	"records-migrate/internal/sample"

	"github.com/spf13/cobra"
)

var (
	generateOut      string
	generateStudents int
	generateSeed     int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write sample students.csv and courses.csv files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateStudents <= 0 {
			return fmt.Errorf("--students must be positive")
		}
		paths, err := sample.Generator{Seed: generateSeed}.WriteDir(generateOut, generateStudents)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("✅ Wrote %s\n", p)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "data", "Output directory")
	generateCmd.Flags().IntVar(&generateStudents, "students", 300, "Number of students")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "Random seed (0 picks one)")
}
