// Package cmd defines the command-line interface for exprora.
package cmd

import (
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(experimentCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	accountCmd.AddCommand(accountCreateCmd)

	experimentCmd.AddCommand(experimentCreateCmd)
	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentStatusCmd)
	experimentCmd.AddCommand(experimentVariantAddCmd)

	statsCmd.AddCommand(statsSignificanceCmd)
	statsCmd.AddCommand(statsLiftCmd)
	statsCmd.AddCommand(statsSampleSizeCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("db-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql or memory")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or console")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListen, "Address the HTTP server listens on")
	serveCmd.Flags().Float64("rate-limit", contract.DefaultRateLimit, "Requests per second per API key (0 disables limiting)")
	serveCmd.Flags().Int("rate-burst", contract.DefaultRateBurst, "Burst size per API key")
	serveCmd.Flags().String("allocation-mode", string(schema.RandomAllocation), "Variant draw mode: random or hash")
	serveCmd.Flags().String("hash-salt", "", "Salt for hash allocation mode")
	serveCmd.Flags().String("trace-exporter", "none", "Trace exporter: none or stdout or otlp")
	serveCmd.Flags().String("otlp-endpoint", "", "OTLP gRPC endpoint (host:port)")
	serveCmd.Flags().Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of resultsCmd to Viper
	resultsCmd.Flags().String("start", "", "Start date in ISO8601 or time ago")
	resultsCmd.Flags().String("end", "", "End date in ISO8601 or time ago")
	if err := viper.BindPFlags(resultsCmd.Flags()); err != nil {
		contract.LogFatal("Error binding results flags", err)
	}
	resultsCmd.Flags().Int64("account", 0, "Account ID that owns the experiment")

	// Bind all flags of exportCmd to Viper
	exportCmd.Flags().String("s3-bucket", "", "Bucket that receives uploaded exports")
	exportCmd.Flags().String("s3-prefix", "", "Key prefix for uploaded exports")
	exportCmd.Flags().String("s3-region", "", "AWS region of the bucket")
	exportCmd.Flags().String("s3-endpoint", "", "Custom S3 endpoint (MinIO and friends)")
	exportCmd.Flags().Bool("s3-path-style", false, "Use path-style bucket addressing")
	if err := viper.BindPFlags(exportCmd.Flags()); err != nil {
		contract.LogFatal("Error binding export flags", err)
	}
	exportCmd.Flags().Int64("account", 0, "Account ID that owns the experiment")
	exportCmd.Flags().Int64("experiment", 0, "Experiment ID to export")
	exportCmd.Flags().Bool("upload", false, "Upload the written files to the configured bucket")

	// Command-local flags that are not part of the shared config
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")

	accountCreateCmd.Flags().String("name", "", "Account name")

	experimentCreateCmd.Flags().Int64("account", 0, "Account ID")
	experimentCreateCmd.Flags().String("name", "", "Experiment name")
	experimentCreateCmd.Flags().String("description", "", "Experiment description")
	experimentCreateCmd.Flags().String("type", string(schema.ABTest), "Experiment type: ab_test or multivariate or split_url")
	experimentCreateCmd.Flags().Int("traffic", 100, "Percent of visitors that participate (1-100)")
	experimentCreateCmd.Flags().String("goal", "", "Primary goal name")

	experimentListCmd.Flags().Int64("account", 0, "Account ID")
	experimentListCmd.Flags().String("status", "", "Only list experiments in this status")

	experimentStatusCmd.Flags().Int64("account", 0, "Account ID")

	experimentVariantAddCmd.Flags().Int64("account", 0, "Account ID")
	experimentVariantAddCmd.Flags().String("name", "", "Variant name")
	experimentVariantAddCmd.Flags().Int("weight", 50, "Traffic weight (0-100)")
	experimentVariantAddCmd.Flags().Bool("control", false, "Mark the variant as the control")
	experimentVariantAddCmd.Flags().String("payload", "", "JSON payload handed to the SDK")

	statsSignificanceCmd.Flags().Int64("control-conversions", 0, "Converting visitors in the control")
	statsSignificanceCmd.Flags().Int64("control-visitors", 0, "Visitors in the control")
	statsSignificanceCmd.Flags().Int64("variant-conversions", 0, "Converting visitors in the variant")
	statsSignificanceCmd.Flags().Int64("variant-visitors", 0, "Visitors in the variant")

	statsLiftCmd.Flags().Float64("control-rate", 0, "Control conversion rate")
	statsLiftCmd.Flags().Float64("variant-rate", 0, "Variant conversion rate")

	statsSampleSizeCmd.Flags().Float64("baseline", 0, "Baseline conversion proportion (e.g. 0.05)")
	statsSampleSizeCmd.Flags().Float64("mde", 0, "Minimum detectable absolute effect (e.g. 0.02)")
	statsSampleSizeCmd.Flags().Float64("power", 0.8, "Statistical power")
	statsSampleSizeCmd.Flags().Float64("alpha", 0.05, "Significance level")
}
