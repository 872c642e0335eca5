package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/checks"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/config"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/credential"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/fleet"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/report"
)

// newAssessCmd creates the assess command, the main entry point of the tool.
func newAssessCmd() *cobra.Command {
	var (
		configPath string
		outputPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run the compatibility assessment against the configured fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			cat, err := knowledge.Load()
			if err != nil {
				return err
			}

			registry := checks.NewRegistry(cat)
			catalogue, err := registry.Filter(cfg.IncludeChecks, cfg.ExcludeChecks)
			if err != nil {
				return err
			}

			resolver, err := credential.NewResolver(cmd.Context(), cfg.Credentials)
			if err != nil {
				return err
			}

			orch := fleet.New(cfg, resolver, catalogue, assess.DefaultPolicy(), slog.Default())
			result, err := orch.Run(cmd.Context())
			if err != nil {
				return err
			}

			doc, err := report.Build(result, cfg.TargetVersion, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				// The only fatal class: an invalid document is never written.
				return err
			}

			var out io.Writer = os.Stdout
			var outFile *os.File
			if outputPath != "" {
				outFile, err = os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				out = outFile
			}

			switch format {
			case "json":
				if err := report.WriteJSON(out, doc); err != nil {
					return err
				}
			case "markdown":
				if err := report.WriteMarkdown(out, doc); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			if outFile != nil {
				if err := outFile.Close(); err != nil {
					return fmt.Errorf("close output: %w", err)
				}
			}

			if result.Status == assess.SeverityCritical {
				// Distinguish "ran, found blockers" from tool failure.
				cmd.SilenceErrors = true
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Report format (json, markdown)")
	cmd.MarkFlagRequired("config")

	return cmd
}
