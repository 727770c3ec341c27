package main

import (
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/mcptools"
	"github.com/hyperifyio/dinecoach/internal/server"
)

func newNearbyCmd(o *options) *cobra.Command {
	var (
		radius     float64
		onlyChains bool
		out        string
	)
	cmd := &cobra.Command{
		Use:   "nearby <zip>",
		Short: "List restaurants near a US ZIP code with two picks each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Nearby(cmd.Context(), app.NearbyRequest{
				ZIP:         strings.TrimSpace(args[0]),
				RadiusMiles: radius,
				OnlyChains:  onlyChains,
				Preferences: a.Config().Preferences(),
			})
			if err != nil {
				return err
			}
			log.Info().Int("restaurants", len(res.Restaurants)).Str("zip", res.Context.ZIP).Msg("nearby search done")
			return writeJSON(cmd, out, res)
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "Search radius in miles (0 uses the configured radius)")
	cmd.Flags().BoolVar(&onlyChains, "only-chains", false, "Keep only well-known chains")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result to this file instead of stdout")
	return cmd
}

func newFoodFactsCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "foodfacts <query...>",
		Short: "Look up packaged foods on Open Food Facts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.FoodFacts(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd, "", res)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 6, "Maximum products to return")
	return cmd
}

func newServeCmd(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := a.Config()
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			r := server.NewRouter(a, server.Options{Defaults: cfg.Preferences(), Debug: cfg.Verbose})
			return server.ListenAndServe(cmd.Context(), cfg.ListenAddr, r)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address (overrides PORT and LISTEN_ADDR)")
	return cmd
}

func newMCPCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP tool server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			log.Info().Str("version", app.BuildVersion).Msg("mcp server on stdio")
			return mcpserver.ServeStdio(mcptools.NewServer(a, a.Config().Preferences()))
		},
	}
}
