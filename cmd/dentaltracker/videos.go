package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newVideosCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List finished timelapse videos",
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

			videos, err := a.photos.Videos()
			if err != nil {
				return err
			}

			if format == formatJSON {
				type videoView struct {
					Path     string `json:"path"`
					Size     int64  `json:"size"`
					Modified string `json:"modified"`
				}
				out := make([]videoView, 0, len(videos))
				for _, v := range videos {
					out = append(out, videoView{Path: v.Path, Size: v.Size, Modified: v.ModTime.Format(time.RFC3339)})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			if len(videos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No timelapses yet. Create one with: dentaltracker timelapse")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"File", "Size", "Created"})
			for _, v := range videos {
				t.AppendRow(table.Row{filepath.Base(v.Path), formatBytes(v.Size), v.ModTime.Format(displayTimeLayout)})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}
