package cmd

import (
	"fmt"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		v := version
		if c := semver.Canonical(v); c != "" {
			v = c
		}
		fmt.Fprintln(cmd.OutOrStdout(), "dalil", v)
		fmt.Fprintln(cmd.OutOrStdout(), "corpus format", corpus.CurrentVersion)
	},
}
