package main

import (
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:          "dentaltracker",
	Short:        "dentaltracker - track dental alignment progress with photos",
	Long:         "dentaltracker keeps a timeline of progress photos and compiles them into timelapse videos.",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, off (overrides config)")

	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newNoteCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newTimelapseCmd())
	rootCmd.AddCommand(newVideosCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newStatusCmd())
}
