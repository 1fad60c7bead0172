package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/history"
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
	"github.com/dieharders/ai-text-server-sub000/pkg/llms"
	"github.com/dieharders/ai-text-server-sub000/pkg/observability"
	"github.com/dieharders/ai-text-server-sub000/pkg/rag"
	"github.com/dieharders/ai-text-server-sub000/pkg/server"
	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
	"github.com/dieharders/ai-text-server-sub000/pkg/vector"
)

// app holds every long-lived component built from a Config.
type app struct {
	cfg *config.Config

	obs          *observability.Manager
	pool         *config.DBPool
	models       *llms.ModelManager
	registry     *tools.Registry
	store        *tools.ToolStore
	userTools    *tools.UserSource
	vectors      vector.Provider
	memory       *rag.Engine
	history      *history.SQLStore
	orchestrator *inference.Orchestrator
}

func buildTools(cfg *config.Config, obs *observability.Manager) (*tools.Registry, *tools.ToolStore, *tools.UserSource, error) {
	prebuilt, err := tools.NewPrebuiltSource(cfg.Tools.Prebuilt)
	if err != nil {
		return nil, nil, nil, err
	}
	store := tools.NewToolStore(cfg.Tools.UserDir)
	user := tools.NewUserSource(store, tools.NewHandlerFactory(cfg.Tools))
	if err := user.Reload(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load user tools: %w", err)
	}
	registry := tools.NewRegistry([]tools.Source{prebuilt, user},
		tools.WithTracer(obs.Tracer()),
		tools.WithMetrics(obs.Metrics()),
	)
	return registry, store, user, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, pool: config.NewDBPool()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.obs = observability.NewManager(cfg.Observability)
	if err := a.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	engine, err := llms.NewOllamaEngine(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.models = llms.NewModelManager(engine, cfg.Engine.ContextWindow)

	a.registry, a.store, a.userTools, err = buildTools(cfg, a.obs)
	if err != nil {
		return nil, err
	}

	a.vectors, err = vector.NewProvider(cfg.RAG.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	embedder, err := rag.NewEmbedder(cfg.RAG.Embedder)
	if err != nil {
		return nil, err
	}
	a.memory = rag.NewEngine(a.vectors, embedder, cfg.RAG)

	opts := []inference.Option{
		inference.WithTools(a.registry),
		inference.WithRetriever(a.memory),
		inference.WithTracer(a.obs.Tracer()),
		inference.WithMetrics(a.obs.Metrics()),
	}

	if config.BoolValue(cfg.History.Enabled, false) {
		a.history, err = history.NewSQLStoreFromConfig(ctx, a.pool, &cfg.History.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		opts = append(opts, inference.WithRecorder(a.history))
	}

	opts = append(opts, inference.WithTokenCounter(inference.DefaultTokenCounter(cfg.Engine.Model)))

	a.orchestrator = inference.New(opts...)
	return a, nil
}

// server builds the HTTP server. Optional components are only passed when
// present so the handlers see a nil interface.
func (a *app) server() (*server.Server, error) {
	opts := server.Options{
		Config:        &a.cfg.Server,
		Orchestrator:  a.orchestrator,
		Models:        a.models,
		Tools:         a.registry,
		ToolStore:     a.store,
		UserTools:     a.userTools,
		Memory:        a.memory,
		Observability: a.obs,
	}
	if a.history != nil {
		opts.History = a.history
	}
	return server.New(opts)
}

// warmup loads the configured startup model. Failure is not fatal: the
// model can still be loaded over HTTP.
func (a *app) warmup(ctx context.Context) {
	if a.cfg.Engine.Model == "" {
		return
	}
	if err := a.models.Engine().Ping(ctx); err != nil {
		slog.Warn("Ollama is not reachable", "url", a.models.Engine().BaseURL(), "error", err)
		return
	}
	if _, err := a.models.Load(ctx, llms.LoadRequest{ModelID: a.cfg.Engine.Model, Mode: inference.ModeChat}); err != nil {
		slog.Warn("Failed to load startup model", "model", a.cfg.Engine.Model, "error", err)
	}
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.models != nil && a.models.Current() != nil {
		if err := a.models.Unload(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.userTools != nil {
		errs = append(errs, a.userTools.Close())
	}
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
