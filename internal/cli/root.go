// Package cli provides the command-line interface for feedsky.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "feedsky",
	Short:         "Mirror a JSON feed to Bluesky",
	Long:          "feedsky posts new entries of a JSON feed to a Bluesky account, combining short entries that were published close together.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "feedsky %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file; environment variables take precedence")
	rootCmd.AddCommand(versionCmd, runCmd, serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
