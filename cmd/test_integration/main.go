// Command test_integration runs a create/search/delete round trip against a
// running nutrigraph server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/agenthands/nutrigraph/internal/backend"
	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/relations"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
)

const defaultBaseURL = "http://localhost:5000/api"

type step struct {
	name string
	run  func(ctx context.Context) error
}

func main() {
	baseURL := os.Getenv("NUTRI_BACKEND_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client, err := backend.New(backend.Options{BaseURL: baseURL, Timeout: 10 * time.Second})
	if err != nil {
		fmt.Printf("Error creating client: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cat := catalog.New(client, nil, nil)
	orch, err := relations.NewOrchestrator(model.KindFood, client, cat, nil, nil)
	if err != nil {
		fmt.Printf("Error creating orchestrator: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Starting Integration Test against", baseURL)
	steps := []step{
		{"Load food relations", func(ctx context.Context) error {
			if err := orch.Load(ctx); err != nil {
				return err
			}
			if len(orch.Groups()) == 0 {
				return errors.New("no food relations")
			}
			return nil
		}},
		{"Create relation", func(ctx context.Context) error {
			return orch.Create(ctx, "aliment_4", model.RelationNutrient, "nutriment_7", map[string]string{model.AttrQuantity: "89", model.AttrUnit: "mg"})
		}},
		{"Reject duplicate relation", func(ctx context.Context) error {
			err := orch.Create(ctx, "aliment_4", model.RelationNutrient, "nutriment_7", nil)
			if !apierr.IsBackend(err) {
				return fmt.Errorf("expected a backend error, got %v", err)
			}
			return nil
		}},
		{"Delete relation", func(ctx context.Context) error {
			return orch.Delete(ctx, "aliment_4", model.RelationNutrient, "nutriment_7")
		}},
		{"Semantic search", func(ctx context.Context) error {
			s := search.NewSession(ctx, client, search.Options{Resolver: cat})
			defer s.Close()
			if err := s.Search(ctx, "Aliments riches en fibres"); err != nil {
				return err
			}
			for _, r := range s.Results() {
				fmt.Printf("  %s (%s)\n", r.Entity.DisplayName, r.Entity.ID)
			}
			if s.State() != search.StatePopulated {
				return errors.New("no results")
			}
			return nil
		}},
		{"Search stats", func(ctx context.Context) error {
			stats, err := client.SearchStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("  %d entities\n", stats.TotalEntities)
			return nil
		}},
	}

	for i, s := range steps {
		fmt.Printf("%d. %s...\n", i+1, s.name)
		if err := s.run(ctx); err != nil {
			fmt.Printf("FAILED: %s: %v\n", s.name, err)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", s.name)
	}
}
