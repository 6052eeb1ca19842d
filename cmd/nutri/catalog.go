package main

import (
	"context"
	"fmt"

	"github.com/agenthands/nutrigraph/internal/app"
	"github.com/agenthands/nutrigraph/internal/driver"
	"github.com/agenthands/nutrigraph/internal/server"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <kind>",
	Short: "List the entities of a kind in display order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			refs, err := a.Catalog.Refresh(ctx, kind)
			if err != nil {
				return err
			}
			for _, r := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s\n", r.ID, r.DisplayName)
			}
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample knowledge base into the graph store",
	RunE: func(cmd *cobra.Command, args []string) error {
		rootFlags.source = "graph"
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			g, ok := a.Source.(*driver.GraphSource)
			if !ok {
				return fmt.Errorf("seed needs the graph source")
			}
			n, err := server.LoadSeed(ctx, g)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d entities\n", n)
			return nil
		})
	},
}
