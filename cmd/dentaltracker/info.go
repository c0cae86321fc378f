package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/database"
)

func newInfoCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Show a single photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := checkFormat(format, formatTable, formatJSON, formatYAML); err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tl, err := a.photos.Timeline(context.Background())
			if err != nil {
				return err
			}

			for _, e := range tl.Entries {
				if e.Photo.ID != id {
					continue
				}
				switch format {
				case formatJSON:
					return writeJSON(cmd.OutOrStdout(), newPhotoView(e.Photo, e.DayOffset))
				case formatYAML:
					return writeYAML(cmd.OutOrStdout(), newPhotoView(e.Photo, e.DayOffset))
				default:
					outputInfoTable(cmd, e.Photo, e.DayOffset)
					return nil
				}
			}
			return fmt.Errorf("photo not found: %d", id)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json, or yaml")

	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid photo id: %s", arg)
	}
	return id, nil
}

func outputInfoTable(cmd *cobra.Command, rec database.PhotoRecord, day int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", rec.ID)
	fmt.Fprintf(out, "Day:         %d\n", day)
	fmt.Fprintf(out, "Captured At: %s\n", rec.CapturedAt.Format(displayTimeLayout))
	fmt.Fprintf(out, "File Path:   %s\n", rec.FilePath)
	fmt.Fprintf(out, "Alignment:   %.2f\n", rec.AlignmentScore)
	fmt.Fprintf(out, "Notes:       %s\n", rec.Notes)
}
