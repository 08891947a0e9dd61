// Package schedule implements the schedule command: periodic ingestion runs
// driven by a cron expression.
package schedule

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	cmdcommon "github.com/coursepulse/ingest/cmd/common"
)

// Command returns the schedule command.
func Command() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the ingestion pipeline on a cron schedule",
		Long: `Run the ingestion pipeline periodically until interrupted.
The schedule uses standard five-field cron syntax, e.g. "0 3 * * *" for
every day at 03:00.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Overlapping runs would race on the same URLs; skip the tick
			// if the previous run is still going.
			var running atomic.Bool

			scheduler := cron.New()
			_, err = scheduler.AddFunc(spec, func() {
				if !running.CompareAndSwap(false, true) {
					deps.Logger.Warn("previous run still in progress, skipping tick")
					return
				}
				defer running.Store(false)

				if runErr := cmdcommon.RunIngestion(ctx, deps); runErr != nil {
					deps.Logger.Error("scheduled run failed", "error", runErr.Error())
				}
			})
			if err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", spec, err)
			}

			deps.Logger.Info("scheduler started", "cron", spec)
			scheduler.Start()

			<-ctx.Done()
			deps.Logger.Info("shutdown signal received, waiting for in-flight run")
			<-scheduler.Stop().Done()

			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "0 3 * * *", "cron expression for run scheduling")

	return cmd
}
