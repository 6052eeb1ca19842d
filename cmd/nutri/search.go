package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agenthands/nutrigraph/internal/app"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/spf13/cobra"
)

var searchFlags struct {
	asJSON    bool
	showQuery bool
}

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Ask a natural-language question, or list suggestions when none is given",
	Example: `  nutri search "Aliments riches en fibres"
  nutri search --show-query "Recettes pour diabétiques"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			s, err := a.NewSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				fmt.Fprintln(out, "Suggestions:")
				for i, sg := range s.Suggestions() {
					fmt.Fprintf(out, "  %d. %s\n", i+1, sg)
				}
				return nil
			}
			if err := s.Search(ctx, text); err != nil {
				return err
			}
			if searchFlags.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s.Results())
			}
			printResults(out, s)
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchFlags.asJSON, "json", false, "print results as JSON")
	searchCmd.Flags().BoolVar(&searchFlags.showQuery, "show-query", false, "print the generated graph query")
}

func printResults(out io.Writer, s *search.Session) {
	results := s.Results()
	in := s.Interpretation()
	fmt.Fprintf(out, "%d résultat(s) pour %q (%s, %s)\n", len(results), s.LastQuery(), in.Kind.Label(), in.Intent)
	if searchFlags.showQuery && s.GeneratedQuery() != "" {
		fmt.Fprintf(out, "\n%s\n\n", s.GeneratedQuery())
	}
	for _, r := range results {
		line := fmt.Sprintf("- %s [%s]", r.Entity.DisplayName, r.Entity.Kind.Label())
		if badge, ok := search.ScoreBadge(r); ok {
			line += " score " + badge
		}
		fmt.Fprintln(out, line)
		for _, d := range search.Details(r) {
			fmt.Fprintf(out, "    %s: %s\n", d.Label, d.Value)
		}
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			s, err := a.NewSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, h := range s.History() {
				fmt.Fprintln(cmd.OutOrStdout(), search.HistoryLabel(h))
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count entities per kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Source.SearchStats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			labels := make([]string, 0, len(stats.ByKind))
			for label := range stats.ByKind {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				fmt.Fprintf(out, "%-12s %d\n", label, stats.ByKind[label])
			}
			fmt.Fprintf(out, "%-12s %d\n", "Total", stats.TotalEntities)
			return nil
		})
	},
}
