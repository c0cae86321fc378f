package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/config"
)

type statusView struct {
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	Database      string `json:"database" yaml:"database"`
	SchemaVersion uint   `json:"schema_version" yaml:"schema_version"`
	SchemaDirty   bool   `json:"schema_dirty" yaml:"schema_dirty"`
	Photos        int64  `json:"photos" yaml:"photos"`
	Videos        int    `json:"videos" yaml:"videos"`
	Publishing    bool   `json:"publishing" yaml:"publishing"`
}

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and storage status",
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

			st, err := a.photos.Status(context.Background())
			if err != nil {
				return err
			}

			view := statusView{
				DataDir:       config.GetDataDir(),
				Database:      config.GetDBPath(),
				SchemaVersion: st.SchemaVersion,
				SchemaDirty:   st.SchemaDirty,
				Photos:        st.Photos,
				Videos:        st.Videos,
				Publishing:    st.Publishing,
			}

			switch format {
			case formatJSON:
				return writeJSON(cmd.OutOrStdout(), view)
			case formatYAML:
				return writeYAML(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			schema := fmt.Sprintf("%d", view.SchemaVersion)
			if view.SchemaDirty {
				schema += " (dirty)"
			}
			publishing := "disabled"
			if view.Publishing {
				publishing = "enabled"
			}
			fmt.Fprintf(out, "Data Dir:   %s\n", view.DataDir)
			fmt.Fprintf(out, "Database:   %s\n", view.Database)
			fmt.Fprintf(out, "Schema:     %s\n", schema)
			fmt.Fprintf(out, "Photos:     %d\n", view.Photos)
			fmt.Fprintf(out, "Videos:     %d\n", view.Videos)
			fmt.Fprintf(out, "Publishing: %s\n", publishing)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json, or yaml")

	return cmd
}
