package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(ui.Out, "copilot %s\n", buildVersion)
		if verbose {
			fmt.Fprintf(ui.Out, "  commit: %s\n", buildCommit)
			fmt.Fprintf(ui.Out, "  built:  %s\n", buildDate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
