// Command nutri queries and edits the nutrition knowledge base from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agenthands/nutrigraph/internal/app"
	"github.com/agenthands/nutrigraph/internal/config"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootFlags struct {
	configPath string
	source     string
	backendURL string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:           "nutri",
	Short:         "Search and manage the nutrition knowledge base",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "path to a TOML or YAML config file")
	f.StringVar(&rootFlags.source, "source", "", `data source: "rest", "graph" or "fixture"`)
	f.StringVar(&rootFlags.backendURL, "backend", "", "REST backend base URL (overrides config)")
	f.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(searchCmd, relationsCmd, catalogCmd, statsCmd, historyCmd, seedCmd)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if rootFlags.configPath != "" {
		loaded, err := config.Load(rootFlags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if rootFlags.source != "" {
		cfg.Source = rootFlags.source
	}
	if rootFlags.backendURL != "" {
		cfg.Backend.BaseURL = rootFlags.backendURL
	}
	if rootFlags.verbose {
		cfg.Log.Mode = "debug"
	}
	return cfg, cfg.Validate()
}

// withApp runs fn against a fully wired App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg := logger.Nop()
	if rootFlags.verbose {
		if lg, err = logger.New("debug"); err != nil {
			return err
		}
		defer lg.Sync()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a)
}

func parseKindArg(s string) (model.EntityKind, error) {
	k, ok := model.ParseKind(s)
	if !ok {
		var names []string
		for _, k := range model.AllKinds() {
			names = append(names, k.Collection())
		}
		return model.KindUnknown, fmt.Errorf("unknown kind %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return k, nil
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
