package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/exprora/internal/outwriter"
	"github.com/huangsam/exprora/internal/parquet"
	"github.com/huangsam/exprora/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// resultsCmd prints the results report of one experiment.
var resultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Show per-variant results with significance and lift",
	Long: `Aggregate assignments and events of an experiment and compare every variant
with the control using a two-proportion z-test.

Examples:
  # Results for the whole lifetime
  exprora results 7 --account 1

  # Last two weeks as CSV
  exprora results 7 --account 1 --start "14 days ago" --output csv --output-file results.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		expID, err := parseID("experiment", args[0])
		if err != nil {
			return err
		}

		start := time.Now()
		results, err := newEngine(zap.NewNop()).GetResults(rootCtx, accountID, expID, cfg.DateRange())
		if err != nil {
			return err
		}

		if cfg.Output == schema.ParquetOut {
			if cfg.OutputFile == "" {
				return errors.New("--output-file is required for parquet output")
			}
			if err := parquet.WriteRecords(parquet.ConvertResults(results), cfg.OutputFile); err != nil {
				return err
			}
			fmt.Printf("💾 Wrote parquet to %s\n", cfg.OutputFile)
			return nil
		}
		return outwriter.NewOutWriter().WriteResults(results, cfg, time.Since(start))
	},
}
