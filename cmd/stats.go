package cmd

import (
	"errors"

	"github.com/huangsam/exprora/core/stats"
	"github.com/huangsam/exprora/internal/outwriter"
	"github.com/spf13/cobra"
)

// statsSetup only needs the output settings; no store is opened.
func statsSetup(_ *cobra.Command, _ []string) error {
	return loadConfig()
}

// statsCmd groups the standalone statistics calculators.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run the statistics engine on raw numbers",
	Long: `Evaluate numbers from any source without touching the store.

Subcommands:
  significance - Two-proportion z-test from raw counts
  lift         - Absolute and relative lift between two rates
  sample-size  - Visitors needed per variant`,
}

var statsSignificanceCmd = &cobra.Command{
	Use:   "significance",
	Short: "Two-proportion z-test from raw counts",
	Long: `Examples:
  exprora stats significance --control-conversions 50 --control-visitors 1000 \
    --variant-conversions 70 --variant-visitors 1000`,
	PreRunE: statsSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc, _ := cmd.Flags().GetInt64("control-conversions")
		cv, _ := cmd.Flags().GetInt64("control-visitors")
		vc, _ := cmd.Flags().GetInt64("variant-conversions")
		vv, _ := cmd.Flags().GetInt64("variant-visitors")
		if cc < 0 || cv < 0 || vc < 0 || vv < 0 {
			return errors.New("counts must not be negative")
		}
		return outwriter.NewOutWriter().WriteSignificance(stats.Compare(cc, cv, vc, vv), cfg)
	},
}

var statsLiftCmd = &cobra.Command{
	Use:   "lift",
	Short: "Absolute and relative lift between two rates",
	Long: `Both rates must use the same unit.

Examples:
  exprora stats lift --control-rate 5 --variant-rate 7`,
	PreRunE: statsSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		controlRate, _ := cmd.Flags().GetFloat64("control-rate")
		variantRate, _ := cmd.Flags().GetFloat64("variant-rate")
		return outwriter.NewOutWriter().WriteLift(controlRate, variantRate, stats.Lift(controlRate, variantRate), cfg)
	},
}

var statsSampleSizeCmd = &cobra.Command{
	Use:   "sample-size",
	Short: "Visitors needed per variant",
	Long: `Estimate visitors per variant to detect an absolute change of --mde from
--baseline (both as proportions). The estimate uses fixed critical values for
95% confidence and 80% power; other --power or --alpha values are reported
but do not change the result.

Examples:
  exprora stats sample-size --baseline 0.05 --mde 0.02`,
	PreRunE: statsSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		baseline, _ := cmd.Flags().GetFloat64("baseline")
		mde, _ := cmd.Flags().GetFloat64("mde")
		power, _ := cmd.Flags().GetFloat64("power")
		alpha, _ := cmd.Flags().GetFloat64("alpha")
		if baseline < 0 || baseline > 1 {
			return errors.New("--baseline must be a proportion between 0 and 1")
		}
		return outwriter.NewOutWriter().WriteSampleSize(stats.EstimateSampleSize(baseline, mde, power, alpha), cfg)
	},
}
