package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serveOpts := &serveOptions{}
	root := &cobra.Command{
		Use:           "support-copilot",
		Short:         "Customer support co-pilot: tone detection, knowledge-base search and response drafting",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOpts)
		},
	}
	serveOpts.AddFlags(root.Flags())

	root.AddCommand(
		newServeCommand(),
		newIngestCommand(),
		newSetupIndexCommand(),
		newCheckCommand(),
	)
	return root
}
