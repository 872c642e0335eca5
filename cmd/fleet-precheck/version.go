package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags at release build time.
var (
	version = "dev"
	commit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fleet-precheck %s (%s)\n", version, commit)
		},
	}
}
