// Package app wires configuration into the components the binaries use.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenthands/nutrigraph/internal/backend"
	"github.com/agenthands/nutrigraph/internal/config"
	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/query"
	"github.com/agenthands/nutrigraph/internal/core/relations"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/agenthands/nutrigraph/internal/driver"
	"github.com/agenthands/nutrigraph/internal/llm"
	"github.com/agenthands/nutrigraph/internal/metric"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/agenthands/nutrigraph/internal/server"
	"github.com/agenthands/nutrigraph/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Registry   *prometheus.Registry
	Metrics    *metric.Metrics
	Source     server.Source
	Catalog    *catalog.Catalog
	Dispatcher *query.Dispatcher
	Reranker   llm.RerankerClient
	History    store.HistoryStore

	closers []func(context.Context) error
}

// New builds every shared component. On error, whatever was opened is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: logger.OrNop(log), Registry: prometheus.NewRegistry()}

	m, err := metric.New(a.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	a.Metrics = m

	if err := a.initLLM(ctx); err != nil {
		return nil, err
	}

	switch cfg.Source {
	case "graph":
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph, a.Log)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to graph store: %w", err)
		}
		a.closers = append(a.closers, d.Close)
		if err := d.BuildIndices(ctx); err != nil {
			a.Log.Warn("failed to build indices", "error", err)
		}
		a.Source = driver.NewGraphSource(d, a.Dispatcher, a.Log, a.Metrics)
	case "fixture":
		a.Source = server.NewFixture(a.Dispatcher)
	default:
		c, err := backend.NewFromConfig(cfg.Backend, a.Log, a.Metrics)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Source = c
	}
	a.Catalog = catalog.New(a.Source, a.Log, a.Metrics)
	return a, nil
}

func (a *App) initLLM(ctx context.Context) error {
	client, err := llm.NewClient(ctx, a.Config.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func(context.Context) error { return closer.Close() })
	}

	var classifier query.Classifier
	if client != nil && a.Config.Search.Classify {
		classifier = query.NewLLMClassifier(client)
	}
	a.Dispatcher = query.NewDispatcher(classifier, a.Log)
	if client != nil && a.Config.Search.Rerank {
		a.Reranker = llm.NewSimpleLLMReranker(client)
	}
	return nil
}

// OpenHistory opens the configured history store. The App closes it.
func (a *App) OpenHistory(ctx context.Context) (store.HistoryStore, error) {
	if a.History != nil {
		return a.History, nil
	}
	h, err := store.New(ctx, a.Config.History, a.Log)
	if err != nil {
		return nil, err
	}
	a.History = h
	a.closers = append(a.closers, func(context.Context) error { return h.Close() })
	return h, nil
}

// NewSession opens a search session over the configured source.
func (a *App) NewSession(ctx context.Context) (*search.Session, error) {
	h, err := a.OpenHistory(ctx)
	if err != nil {
		return nil, err
	}
	return search.NewSession(ctx, a.Source, search.Options{
		Resolver:    a.Catalog,
		Dispatcher:  a.Dispatcher,
		History:     h,
		HistorySize: a.Config.Search.HistorySize,
		Reranker:    a.Reranker,
		Logger:      a.Log,
		Metrics:     a.Metrics,
	}), nil
}

// NewOrchestrator returns the relation manager for subjects of kind.
func (a *App) NewOrchestrator(kind model.EntityKind) (*relations.Orchestrator, error) {
	return relations.NewOrchestrator(kind, a.Source, a.Catalog, a.Log, a.Metrics)
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
