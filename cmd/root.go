package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lms",
	Short: "LMS API server and tooling",
	Long: `lms is the backend for the learning management system: a JSON API
serving registration, login, course catalog, lesson video assets, and
playback progress tracking.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
