package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

func newWatchCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the timeline every time it changes",
		Long:  "Subscribe to the photo store and print the timeline on every change made by this process. Runs until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, formatTable, formatJSON); err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			snapshots, err := a.store.Observe(ctx)
			if err != nil {
				return err
			}

			for snap := range snapshots {
				if err := printSnapshot(cmd, snap, format); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json (one document per line)")

	return cmd
}

func printSnapshot(cmd *cobra.Command, snap []database.PhotoRecord, format string) error {
	tl := usecase.BuildTimeline(snap)
	out := cmd.OutOrStdout()

	if format == formatJSON {
		return writeCompactJSON(out, newTimelineView(tl))
	}

	fmt.Fprintf(out, "[%s] %d photo(s), %d day(s) tracked\n", time.Now().Format(displayTimeLayout), tl.Count, tl.DaysTracked)
	outputTimelineTable(cmd, tl, getTerminalWidth())
	return nil
}

func writeCompactJSON(w io.Writer, v any) error {
	return writeJSONIndent(w, v, "")
}
