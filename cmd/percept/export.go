// ABOUTME: Export command for uploading the event journal to GCS
// ABOUTME: Runs one export of all journal records as JSON lines

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/percept-io/percept/internal/config"
	"github.com/percept-io/percept/internal/export"
	"github.com/percept-io/percept/internal/journal"
	"github.com/percept-io/percept/internal/observability"
)

func newExportCmd() *cobra.Command {
	var (
		dataDir string
		bucket  string
		prefix  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the event journal to a GCS bucket",
		Long: `Upload every record in the local event journal to the configured
GCS bucket as one newline-delimited JSON object.

Credentials come from the config file or Application Default
Credentials. Intended to run from cron or as a pre-rotation step.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("bucket") {
				cfg.Export.Bucket = bucket
			}
			if cmd.Flags().Changed("prefix") {
				cfg.Export.ObjectPrefix = prefix
			}

			logger := observability.NewLogger(observability.LoggingConfig{
				Level:       logLevel,
				Format:      logFormat,
				ServiceName: "percept",
				Version:     version,
			}, os.Stderr)

			j, err := journal.Open(journal.Config{
				Path: filepath.Join(cfg.DataDir, "journal"),
			})
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer j.Close()

			exp, err := export.New(cmd.Context(), export.Config{
				Bucket:          cfg.Export.Bucket,
				ObjectPrefix:    cfg.Export.ObjectPrefix,
				CredentialsFile: cfg.Export.CredentialsFile,
			}, j, logger)
			if err != nil {
				return fmt.Errorf("creating exporter: %w", err)
			}
			defer exp.Close()

			result, err := exp.Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("exporting journal: %w", err)
			}

			fmt.Printf("exported %d records (%d bytes) to gs://%s/%s\n",
				result.Records, result.Bytes, cfg.Export.Bucket, result.Object)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory containing the event journal")
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket name")
	cmd.Flags().StringVar(&prefix, "prefix", "", "object name prefix")

	return cmd
}
