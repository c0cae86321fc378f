package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dentaltracker/dentaltracker/internal/services"
)

func newNoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <id> [text...]",
		Short: "Replace the note on a photo",
		Long:  "Replace the note on a photo. Omit the text to clear it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.photos.Annotate(context.Background(), id, text); err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("photo not found: %d", id)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated note on photo %d\n", id)
			return nil
		},
	}

	return cmd
}
