package cmd

import (
	"runtime"

	"github.com/huangsam/exprora/core/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of exprora.",
	Long: `Display version information including build details.

Shows:
- Release version, commit and build time
- Go runtime version
- Store backend and allocation mode from the environment
- Statistics defaults used by results and sample-size estimates`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("exprora CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
		cmd.Printf("  Store:      %s\n", viper.GetString("db-backend"))
		cmd.Printf("  Allocation: %s\n", viper.GetString("allocation-mode"))
		cmd.Printf("  Statistics: two-proportion z-test, p < %g, power %g\n",
			stats.SignificanceThreshold, stats.DefaultPower)
	},
}
