package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
)

// newRootCmd creates the fleet-precheck root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet-precheck",
		Short: "Assess a MySQL fleet for 8.0 upgrade readiness",
		Long: `fleet-precheck runs a read-only compatibility assessment across a fleet
of MySQL 5.7 endpoints and reports per-target findings, readiness scores,
and a recommended upgrade order.

The engine never writes to a target database and never persists credentials.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging()
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(newAssessCmd())
	cmd.AddCommand(newChecksCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func configureLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
