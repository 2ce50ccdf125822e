package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/spigell/job-matcher/cmd.version=... -X github.com/spigell/job-matcher/cmd.commit=...".
var (
	version = "unknown"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s (%s)\n", app, version, commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
