// Package cli implements the slaq command line client.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/slaq/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking SLAQ_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("SLAQ_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the slaq CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slaq",
		Short: "slaq — SLA-aware task queue client",
		Long:  "slaq enqueues, inspects, and manages background pipeline tasks on a slaq server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "slaq server URL (or SLAQ_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newEnqueueCmd(),
		newListCmd(),
		newStatusCmd(),
		newStatsCmd(),
		newBlockCmd(),
		newUnblockCmd(),
	)

	return root
}
