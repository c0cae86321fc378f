package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a photo and its image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := context.Background()
			rec, err := a.photos.Get(ctx, id)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("photo not found: %d", id)
			}

			if !force {
				message := fmt.Sprintf("Delete photo %d (%s)? The image file will be removed. (y/N) ", id, rec.FilePath)
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), message)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
					return nil
				}
			}

			if _, err := a.tracker.DeletePhoto(ctx, id); err != nil {
				return fmt.Errorf("%s", a.tracker.State().ErrorMessage)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted photo %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

func confirm(in io.Reader, prompt io.Writer, message string) (bool, error) {
	fmt.Fprint(prompt, message)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}
