package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/jobs"
)

func newScheduleCmd() *cobra.Command {
	var (
		spec    string
		publish bool
		now     bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rebuild the timelapse on a cron schedule",
		Long: "Run in the foreground and rebuild the timelapse on a schedule.\n" +
			"The expression has six fields including seconds (\"0 0 9 * * 0\" is Sundays at 09:00) or is a descriptor such as @weekly.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if spec == "" {
				spec = a.settings.Schedule.Cron
			}

			var publisher jobs.Publisher
			if publish {
				if !a.photos.CanPublish() {
					return fmt.Errorf("--publish requires storage.endpoint to be configured")
				}
				publisher = func(ctx context.Context, path string) error {
					_, err := a.photos.Publish(ctx, path)
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := jobs.NewScheduler(spec, a.tracker, publisher, a.log)
			if now {
				scheduler.RunOnce(ctx)
			}
			if err := scheduler.Start(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Next timelapse at %s\n", scheduler.Next().Format(displayTimeLayout))
			<-ctx.Done()

			a.log.Info().Msg("stopping scheduler")
			a.tracker.Close()
			<-scheduler.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (defaults to schedule.cron from config)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Upload every rebuilt video to the configured bucket")
	cmd.Flags().BoolVar(&now, "now", false, "Rebuild once immediately before waiting for the schedule")

	return cmd
}
