package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/checks"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// newChecksCmd creates the checks command listing the registered catalogue.
func newChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the registered compatibility checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := knowledge.Load()
			if err != nil {
				return err
			}
			for _, c := range checks.NewRegistry(cat).All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", c.Key(), c.Label())
			}
			return nil
		},
	}
}
