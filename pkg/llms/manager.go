package llms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
)

// ErrNoModelLoaded is returned by operations that need a loaded model.
var ErrNoModelLoaded = errors.New("no model loaded")

// LoadRequest is the body of a model load.
type LoadRequest struct {
	ModelID string                      `json:"modelId"`
	Mode    string                      `json:"mode,omitempty"`
	Init    InitOptions                 `json:"init"`
	Call    inference.GenerationOptions `json:"call"`
}

// ModelManager owns the single loaded model. Request handlers read the
// handle through Current; only Load and Unload replace it.
type ModelManager struct {
	engine        *OllamaEngine
	defaultWindow int

	mu      sync.RWMutex
	current *OllamaModel
}

func NewModelManager(engine *OllamaEngine, defaultWindow int) *ModelManager {
	if defaultWindow <= 0 {
		defaultWindow = inference.DefaultContextWindow
	}
	return &ModelManager{engine: engine, defaultWindow: defaultWindow}
}

func (m *ModelManager) Engine() *OllamaEngine { return m.engine }

// Current returns the loaded model, or nil.
func (m *ModelManager) Current() *OllamaModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Model returns the loaded model as an inference handle. A nil interface
// is returned when nothing is loaded.
func (m *ModelManager) Model() inference.Model {
	if cur := m.Current(); cur != nil {
		return cur
	}
	return nil
}

// Load replaces the current model. The previous model is unloaded first
// even when the new load fails.
func (m *ModelManager) Load(ctx context.Context, req LoadRequest) (*OllamaModel, error) {
	if req.ModelID == "" {
		return nil, errors.New("modelId is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.engine.Unload(ctx, m.current.info.ID); err != nil {
			slog.Warn("Failed to unload previous model", "model", m.current.info.ID, "error", err)
		}
		m.current = nil
	}

	init := req.Init
	if init.NCtx <= 0 {
		init.NCtx = m.defaultWindow
	}

	start := time.Now()
	if err := m.engine.Load(ctx, req.ModelID, init); err != nil {
		return nil, err
	}

	details, err := m.engine.Show(ctx, req.ModelID)
	if err != nil {
		slog.Debug("Model details unavailable", "model", req.ModelID, "error", err)
		details = nil
	}

	m.current = &OllamaModel{
		engine: m.engine,
		info: ModelInfo{
			ID:            req.ModelID,
			Mode:          req.Mode,
			ContextWindow: init.NCtx,
			Details:       details,
			Init:          init,
			Call:          req.Call,
			LoadedAt:      time.Now(),
		},
	}
	slog.Info("Model loaded", "model", req.ModelID, "n_ctx", init.NCtx, "duration", time.Since(start))
	return m.current, nil
}

// Unload ejects the current model.
func (m *ModelManager) Unload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoModelLoaded
	}
	id := m.current.info.ID
	m.current = nil
	if err := m.engine.Unload(ctx, id); err != nil {
		return fmt.Errorf("model %s was released locally but the engine refused: %w", id, err)
	}
	slog.Info("Model unloaded", "model", id)
	return nil
}

// Installed lists the models the engine can load.
func (m *ModelManager) Installed(ctx context.Context) ([]InstalledModel, error) {
	return m.engine.List(ctx)
}
