// Package ingest implements the ingest command: one complete pipeline run.
package ingest

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcommon "github.com/coursepulse/ingest/cmd/common"
)

// Command returns the ingest command.
func Command() *cobra.Command {
	var (
		category  string
		maxItems  int
		headless  bool
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the course ingestion pipeline once",
		Long: `Fetch course listings for the target category, normalize them, and upsert
them into the shared course store. Writes courses.json and run-report.json
to the output directory.

The exit status is zero unless a fatal error occurred; per-item failures are
recorded in the run report instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFlagOverrides(cmd, category, maxItems, headless, outputDir)

			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := cmdcommon.RunIngestion(ctx, deps); err != nil {
				return fmt.Errorf("ingestion run failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "target category identifier")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "maximum number of courses to collect")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without interactive output (recorded in artifacts)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for JSON artifacts")

	return cmd
}

// applyFlagOverrides pushes set flags into Viper so config.Load sees them.
func applyFlagOverrides(cmd *cobra.Command, category string, maxItems int, headless bool, outputDir string) {
	if cmd.Flags().Changed("category") {
		viper.Set("source.category", category)
	}
	if cmd.Flags().Changed("max-items") {
		viper.Set("pipeline.max_items", maxItems)
	}
	if cmd.Flags().Changed("headless") {
		viper.Set("pipeline.headless", headless)
	}
	if cmd.Flags().Changed("output-dir") {
		viper.Set("pipeline.output_dir", outputDir)
	}
}
