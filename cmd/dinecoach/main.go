// Command dinecoach ranks restaurant menu items for a calorie target from
// the command line, over HTTP or as an MCP tool server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/dinecoach/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := newOptions()
	root := &cobra.Command{
		Use:           "dinecoach",
		Short:         "Pick what to order from a restaurant menu",
		Long:          "dinecoach reads a menu page, PDF or item list and ranks dishes against a calorie target, with order modifiers and a line to say to the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.bind(root)
	root.AddCommand(
		newAnalyzeCmd(o),
		newRankCmd(o),
		newNearbyCmd(o),
		newFoodFactsCmd(o),
		newServeCmd(o),
		newMCPCmd(o),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dinecoach %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		},
	}
}
