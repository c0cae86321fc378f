package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

func newCaptureCmd() *cobra.Command {
	var (
		note string
		at   string
	)

	cmd := &cobra.Command{
		Use:   "capture <image>",
		Short: "Add a JPEG photo to the timeline",
		Long:  "Copy a JPEG image into the pictures directory and record it on the timeline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := usecase.CaptureInput{SourcePath: args[0], Notes: note}
			if at != "" {
				t, err := parseCaptureTime(at)
				if err != nil {
					return err
				}
				input.CapturedAt = t
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.tracker.SavePhoto(context.Background(), input)
			if err != nil {
				return fmt.Errorf("%s", a.tracker.State().ErrorMessage)
			}

			fmt.Fprintln(cmd.OutOrStdout(), a.tracker.State().SuccessMessage)
			fmt.Fprintf(cmd.OutOrStdout(), "ID:   %d\nFile: %s\n", rec.ID, rec.FilePath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "Note to attach to the photo")
	cmd.Flags().StringVar(&at, "at", "", "Capture time (RFC3339 or \"2006-01-02 15:04\"), defaults to now")

	return cmd
}

func parseCaptureTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid capture time: %s", s)
}
