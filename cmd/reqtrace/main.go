// Package main implements the reqtrace CLI: submit traced requests from the
// command line or an interactive form, and run the receiver they post to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logOutput  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reqtrace",
		Short: "Submit requests with W3C trace context",
		Long: `reqtrace submits requests to a backend endpoint with a fresh W3C traceparent
header, reports each attempt to the configured RUM and log backends, and can run
the receiver that accepts those requests.

Configuration is read from ~/.config/reqtrace/config.yaml and the environment
(DD_RUM_APPLICATION_ID, DD_RUM_CLIENT_TOKEN, DD_LOGS_CLIENT_TOKEN, REQTRACE_*).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/reqtrace/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logOutput, "log-output", "", "local log destination: stdout, stderr, discard or a file path")

	cmd.AddCommand(
		newSubmitCmd(opts),
		newFormCmd(opts),
		newServeCmd(opts),
		newMonitorCmd(),
		newTraceparentCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reqtrace by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
