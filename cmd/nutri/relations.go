package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/agenthands/nutrigraph/internal/app"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/spf13/cobra"
)

var relationsCmd = &cobra.Command{
	Use:   "relations",
	Short: "List, add and remove relations",
}

var relationsListCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "Show every relation of a kind, grouped by subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			o, err := a.NewOrchestrator(kind)
			if err != nil {
				return err
			}
			if err := o.Load(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, g := range o.Groups() {
				fmt.Fprintf(out, "%s (%s)\n", g.Subject.DisplayName, g.Subject.ID)
				for _, r := range g.Relations {
					line := fmt.Sprintf("  %s %s %s", r.RelationType.DisplayName(), r.RelationType.Label(), r.ObjectName)
					if q := r.Attributes[model.AttrQuantity]; q != "" {
						line += fmt.Sprintf(" (%s %s)", q, r.Attributes[model.AttrUnit])
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		})
	},
}

var relationsAddFlags struct {
	quantity float64
	unit     string
}

var relationsAddCmd = &cobra.Command{
	Use:     "add <kind> <subject-id> <TYPE> <target-id>",
	Short:   "Create a relation",
	Example: `  nutri relations add aliments aliment_1 NUTRIMENT nutriment_5 --quantity 2.4 --unit g`,
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, t, err := parseRelationArgs(args)
		if err != nil {
			return err
		}
		var attrs map[string]string
		if cmd.Flags().Changed("quantity") {
			attrs = map[string]string{
				model.AttrQuantity: strconv.FormatFloat(relationsAddFlags.quantity, 'f', -1, 64),
				model.AttrUnit:     relationsAddFlags.unit,
			}
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			o, err := a.NewOrchestrator(kind)
			if err != nil {
				return err
			}
			if err := o.Create(ctx, args[1], t, args[3], attrs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Relation créée")
			return nil
		})
	},
}

var relationsRmCmd = &cobra.Command{
	Use:   "rm <kind> <subject-id> <TYPE> <target-id>",
	Short: "Delete a relation",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, t, err := parseRelationArgs(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			o, err := a.NewOrchestrator(kind)
			if err != nil {
				return err
			}
			if err := o.Delete(ctx, args[1], t, args[3]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Relation supprimée")
			return nil
		})
	},
}

func init() {
	relationsAddCmd.Flags().Float64Var(&relationsAddFlags.quantity, "quantity", 0, "nutrient quantity")
	relationsAddCmd.Flags().StringVar(&relationsAddFlags.unit, "unit", "g", "nutrient unit")
	relationsCmd.AddCommand(relationsListCmd, relationsAddCmd, relationsRmCmd)
}

func parseRelationArgs(args []string) (model.EntityKind, model.RelationType, error) {
	kind, err := parseKindArg(args[0])
	if err != nil {
		return kind, model.RelationUnknown, err
	}
	t, ok := model.ParseRelationType(args[2])
	if !ok {
		var codes []string
		for _, rt := range model.RelationTypesFor(kind) {
			codes = append(codes, rt.String())
		}
		return kind, t, fmt.Errorf("unknown relation type %q (want one of %v)", args[2], codes)
	}
	return kind, t, nil
}
