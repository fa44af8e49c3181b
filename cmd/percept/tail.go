// ABOUTME: Tail command for inspecting recent journal records
// ABOUTME: Prints the newest tracked events and profile syncs as JSON lines

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/percept-io/percept/internal/config"
	"github.com/percept-io/percept/internal/journal"
)

func newTailCmd() *cobra.Command {
	var (
		dataDir string
		count   int
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the newest event journal records",
		Long: `Read the local event journal and print the newest records, one
JSON object per line, most recent first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if count <= 0 {
				return fmt.Errorf("count must be positive, got %d", count)
			}

			j, err := journal.Open(journal.Config{
				Path: filepath.Join(cfg.DataDir, "journal"),
			})
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer j.Close()

			records, err := j.Recent(cmd.Context(), count)
			if err != nil {
				return fmt.Errorf("reading journal: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return fmt.Errorf("encoding record: %w", err)
				}
			}

			stats := j.Stats()
			fmt.Fprintf(os.Stderr, "%d of %d records\n", len(records), stats.Records)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory containing the event journal")
	cmd.Flags().IntVarP(&count, "count", "n", 20, "number of records to print")

	return cmd
}
