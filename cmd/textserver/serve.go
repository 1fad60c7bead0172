package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host    string `help:"Address to bind (overrides config)."`
	Port    int    `help:"Port to listen on (overrides config)."`
	Model   string `help:"Model to load at startup (overrides config)."`
	Ollama  string `name:"ollama-url" help:"Ollama base URL (overrides config)."`
	Watch   bool   `help:"Reload the config file when it changes."`
	NoWarm  bool   `name:"no-warmup" help:"Do not load the startup model."`
	History bool   `help:"Enable the inference history log (sqlite by default)."`
}

func (c *ServeCmd) Run(cli *CLI, logs *logSettings) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnvForConfig(cli.Config)
	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if loader != nil {
		defer loader.Close()
		slog.Info("Loaded configuration", "path", cli.Config)
	} else {
		slog.Info("Using zero-config mode")
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logs.applyConfig(&cfg.Logger); err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			slog.Warn("Shutdown finished with errors", "error", err)
		}
	}()

	srv, err := a.server()
	if err != nil {
		return err
	}
	c.printStartup(cfg, srv.Address())

	if !c.NoWarm {
		a.warmup(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if config.BoolValue(cfg.Tools.Watch, true) {
		g.Go(func() error {
			if err := a.userTools.Watch(gctx); err != nil {
				slog.Warn("Tool directory watching disabled", "error", err)
			}
			return nil
		})
	}

	if c.Watch && loader != nil {
		loader.SetOnChange(func(next *config.Config) {
			if err := logs.applyConfig(&next.Logger); err != nil {
				slog.Warn("Failed to apply logger settings", "error", err)
			}
			if next.Tools.UserDir != cfg.Tools.UserDir {
				slog.Warn("tools.user_dir changed; restart to use the new directory", "dir", next.Tools.UserDir)
			}
			if err := a.userTools.Reload(); err != nil {
				slog.Warn("Failed to reload user tools", "error", err)
			}
		})
		g.Go(func() error { return loader.Watch(gctx) })
	}

	return g.Wait()
}

func (c *ServeCmd) applyOverrides(cfg *config.Config) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Model != "" {
		cfg.Engine.Model = c.Model
	}
	if c.Ollama != "" {
		cfg.Engine.BaseURL = c.Ollama
		cfg.RAG.Embedder.BaseURL = c.Ollama
	}
	if c.History {
		cfg.History.Enabled = config.BoolPtr(true)
	}
}

func (c *ServeCmd) printStartup(cfg *config.Config, addr string) {
	fmt.Printf("\n  Server ready\n")
	fmt.Printf("   Inference:   http://%s/v1/text/inference\n", addr)
	fmt.Printf("   Health:      http://%s/health\n", addr)
	fmt.Printf("   Engine:      %s (%s)\n", cfg.Engine.Provider, cfg.Engine.BaseURL)
	fmt.Printf("   Vectors:     %s\n", cfg.RAG.Vector.Type)
	if config.BoolValue(cfg.History.Enabled, false) {
		fmt.Printf("   History:     %s (%s)\n", cfg.History.Database.Driver, cfg.History.Database.Database)
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:     http://%s%s\n", addr, cfg.Observability.Metrics.Endpoint)
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:     %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
