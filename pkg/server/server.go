// Package server exposes the gateway over HTTP.
//
// Every JSON response uses the {success, message, data} envelope. The
// inference endpoint switches to text/event-stream when the request asks
// for streaming and the first token arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/history"
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
	"github.com/dieharders/ai-text-server-sub000/pkg/llms"
	"github.com/dieharders/ai-text-server-sub000/pkg/observability"
	"github.com/dieharders/ai-text-server-sub000/pkg/rag"
	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
	"github.com/dieharders/ai-text-server-sub000/pkg/vector"
)

// ModelHost owns the loaded model. *llms.ModelManager implements it.
type ModelHost interface {
	Model() inference.Model
	Current() *llms.OllamaModel
	Load(ctx context.Context, req llms.LoadRequest) (*llms.OllamaModel, error)
	Unload(ctx context.Context) error
	Installed(ctx context.Context) ([]llms.InstalledModel, error)
}

// ToolCatalog lists resolvable tools. *tools.Registry implements it.
type ToolCatalog interface {
	List() []tools.Tool
	Describe(t tools.Tool) tools.Description
}

// ToolReloader rescans user tool definitions after they change.
type ToolReloader interface {
	Reload() error
}

// Memory manages vector collections. *rag.Engine implements it.
type Memory interface {
	Collections(ctx context.Context) ([]vector.CollectionInfo, error)
	Ingest(ctx context.Context, collection string, docs []rag.IngestDocument) (int, error)
	DeleteCollection(ctx context.Context, name string) error
}

// HistoryLister reads the inference log. *history.SQLStore implements it.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options wires the server. Memory and History may be nil when the
// feature is disabled.
type Options struct {
	Config        *config.ServerConfig
	Orchestrator  *inference.Orchestrator
	Models        ModelHost
	Tools         ToolCatalog
	ToolStore     *tools.ToolStore
	UserTools     ToolReloader
	Memory        Memory
	History       HistoryLister
	Observability *observability.Manager
}

type Server struct {
	opts       Options
	cfg        *config.ServerConfig
	router     http.Handler
	httpServer *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if opts.Models == nil {
		return nil, fmt.Errorf("model host is required")
	}
	if opts.Tools == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}
	if opts.Observability == nil {
		opts.Observability = observability.NoopManager()
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	cfg.SetDefaults()

	s := &Server{opts: opts, cfg: cfg}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout.Duration(),
		WriteTimeout: cfg.WriteTimeout.Duration(),
	}
	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Address() string { return s.cfg.Address() }

func (s *Server) routes() http.Handler {
	obs := s.opts.Observability

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(observability.HTTPMiddleware(obs.Tracer(), obs.Metrics()))
	r.Use(corsMiddleware(s.cfg.CORS))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if h := obs.MetricsHandler(); h != nil {
		r.Method(http.MethodGet, obs.MetricsPath(), h)
	}

	r.Route("/v1/text", func(r chi.Router) {
		r.With(requireJSON).Post("/inference", s.handleInference)
		r.With(requireJSON).Post("/load", s.handleLoad)
		r.Post("/unload", s.handleUnload)
		r.Get("/model", s.handleModel)
		r.Get("/installed", s.handleInstalled)
		r.Get("/history", s.handleHistory)
	})

	r.Route("/v1/persist/tool-settings", func(r chi.Router) {
		r.Get("/", s.handleListToolSettings)
		r.With(requireJSON).Post("/", s.handleSaveToolSetting)
		r.Delete("/", s.handleDeleteToolSetting)
	})
	r.Get("/v1/tools", s.handleListTools)

	r.Route("/v1/memory/collections", func(r chi.Router) {
		r.Get("/", s.handleListCollections)
		r.With(requireJSON).Post("/{name}/documents", s.handleIngest)
		r.Delete("/{name}", s.handleDeleteCollection)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, inference.Envelope{Message: "Route not found."})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	slog.Info("HTTP server listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	slog.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
