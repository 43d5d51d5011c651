package cmd

import (
	"errors"
	"fmt"

	"github.com/huangsam/exprora/internal/datastore"
	"github.com/huangsam/exprora/internal/parquet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exportCmd writes Parquet files for one experiment and optionally uploads them.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export assignments, events and results to Parquet",
	Long: `Write <prefix>_assignments.parquet, <prefix>_events.parquet and
<prefix>_results.parquet for one experiment. With --upload the files are copied
to the configured S3 bucket.

Examples:
  exprora export --account 1 --experiment 7 --output-file ./checkout

  # Upload to MinIO
  exprora export --account 1 --experiment 7 --output-file ./checkout --upload \
    --s3-bucket exports --s3-endpoint http://localhost:9000 --s3-path-style`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		expID, _ := cmd.Flags().GetInt64("experiment")
		if expID <= 0 {
			return errors.New("--experiment is required")
		}
		upload, _ := cmd.Flags().GetBool("upload")
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required as the export prefix")
		}
		if upload && !cfg.S3.Enabled() {
			return errors.New("--upload requires --s3-bucket")
		}

		results, err := newEngine(zap.NewNop()).GetResults(rootCtx, accountID, expID, cfg.DateRange())
		if err != nil {
			return err
		}
		paths, err := parquet.ExportExperiment(rootCtx, datastore.Manager.GetStore(), accountID, results, cfg.DateRange(), cfg.OutputFile)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("💾 Wrote %s\n", p)
		}

		if !upload {
			return nil
		}
		uploader, err := parquet.NewS3Uploader(rootCtx, cfg.S3)
		if err != nil {
			return err
		}
		uris, err := uploader.Upload(rootCtx, paths...)
		if err != nil {
			return err
		}
		for _, uri := range uris {
			fmt.Printf("☁️  Uploaded %s\n", uri)
		}
		return nil
	},
}
