package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

func newListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the photo timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			switch format {
			case formatJSON:
				return writeJSON(cmd.OutOrStdout(), newTimelineView(tl))
			case formatYAML:
				return writeYAML(cmd.OutOrStdout(), newTimelineView(tl))
			default:
				outputTimelineTable(cmd, tl, getTerminalWidth())
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json, or yaml")

	return cmd
}

type timelineView struct {
	Count       int         `json:"count" yaml:"count"`
	DaysTracked int         `json:"days_tracked" yaml:"days_tracked"`
	Photos      []photoView `json:"photos" yaml:"photos"`
}

func newTimelineView(tl usecase.Timeline) timelineView {
	view := timelineView{
		Count:       tl.Count,
		DaysTracked: tl.DaysTracked,
		Photos:      make([]photoView, 0, len(tl.Entries)),
	}
	for _, e := range tl.Entries {
		view.Photos = append(view.Photos, newPhotoView(e.Photo, e.DayOffset))
	}
	return view
}

// notesWidth leaves the notes column whatever the fixed columns do not use.
func notesWidth(termWidth int) int {
	const (
		id       = 6
		day      = 5
		captured = 19
		file     = 28
		borders  = 5 * 3
	)
	w := termWidth - id - day - captured - file - borders
	if w < 15 {
		w = 15
	}
	return w
}

func outputTimelineTable(cmd *cobra.Command, tl usecase.Timeline, termWidth int) {
	out := cmd.OutOrStdout()
	if tl.Count == 0 {
		fmt.Fprintln(out, "No photos yet. Add one with: dentaltracker capture <image>")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Day", "Captured", "File", "Notes"})

	nw := notesWidth(termWidth)
	for _, e := range tl.Entries {
		t.AppendRow(table.Row{
			e.Photo.ID,
			e.DayOffset,
			e.Photo.CapturedAt.Format(displayTimeLayout),
			runewidth.Truncate(filepath.Base(e.Photo.FilePath), 28, "..."),
			wrapString(e.Photo.Notes, nw),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Photos", tl.Count})
	t.AppendFooter(table.Row{"", "", "", "Days tracked", tl.DaysTracked})

	t.Render()
}
