// Package llms talks to the generation engine and owns the loaded model.
package llms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/httpclient"
)

// OllamaEngine wraps the Ollama API client.
type OllamaEngine struct {
	client    *api.Client
	baseURL   string
	keepAlive time.Duration
	timeout   time.Duration
}

type EngineOption func(*engineOptions)

type engineOptions struct {
	transport http.RoundTripper
}

// WithEngineTransport replaces the base transport under the retry layer.
func WithEngineTransport(rt http.RoundTripper) EngineOption {
	return func(o *engineOptions) { o.transport = rt }
}

func NewOllamaEngine(cfg config.EngineConfig, opts ...EngineOption) (*OllamaEngine, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultOllamaURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	if o.transport == nil {
		o.transport = http.DefaultTransport
	}
	// No client timeout: streams last as long as generation does and are
	// bounded by the request context instead. Only the idempotent metadata
	// calls (list, heartbeat) are retried; generation is sent once.
	retrying := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Transport: o.transport}),
		httpclient.WithMaxRetries(3),
		httpclient.WithBaseDelay(2*time.Second),
	)

	return &OllamaEngine{
		client:    api.NewClient(parsed, &http.Client{Transport: retrying}),
		baseURL:   baseURL,
		keepAlive: cfg.KeepAlive.Duration(),
		timeout:   cfg.Timeout.Duration(),
	}, nil
}

func (e *OllamaEngine) BaseURL() string { return e.baseURL }

// InstalledModel is one entry of the engine's model list.
type InstalledModel struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	Family        string    `json:"family,omitempty"`
	ParameterSize string    `json:"parameterSize,omitempty"`
	Quantization  string    `json:"quantization,omitempty"`
	ModifiedAt    time.Time `json:"modifiedAt"`
}

// List returns the models the engine has installed.
func (e *OllamaEngine) List(ctx context.Context) ([]InstalledModel, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	resp, err := e.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]InstalledModel, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = InstalledModel{
			ID:            m.Model,
			Name:          m.Name,
			Size:          m.Size,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
			ModifiedAt:    m.ModifiedAt,
		}
	}
	return models, nil
}

// ModelDetails is what the engine reports about one model.
type ModelDetails struct {
	Family        string `json:"family,omitempty"`
	ParameterSize string `json:"parameterSize,omitempty"`
	Quantization  string `json:"quantization,omitempty"`
	// ContextLength is the trained context length, when reported.
	ContextLength int `json:"contextLength,omitempty"`
}

// Show fetches details for a model.
func (e *OllamaEngine) Show(ctx context.Context, name string) (*ModelDetails, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	resp, err := e.client.Show(ctx, &api.ShowRequest{Model: name})
	if err != nil {
		return nil, fmt.Errorf("failed to show model %s: %w", name, err)
	}

	details := &ModelDetails{
		Family:        resp.Details.Family,
		ParameterSize: resp.Details.ParameterSize,
		Quantization:  resp.Details.QuantizationLevel,
	}
	for k, v := range resp.ModelInfo {
		if strings.HasSuffix(k, ".context_length") {
			if n, ok := v.(float64); ok {
				details.ContextLength = int(n)
			}
		}
	}
	return details, nil
}

// Load warms a model by sending an empty prompt with a keep-alive.
func (e *OllamaEngine) Load(ctx context.Context, name string, init InitOptions) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	req := &api.GenerateRequest{
		Model:     name,
		KeepAlive: &api.Duration{Duration: e.keepAlive},
		Options:   init.options(),
	}
	if err := e.client.Generate(ctx, req, func(api.GenerateResponse) error { return nil }); err != nil {
		return fmt.Errorf("failed to load model %s: %w", name, engineError(err))
	}
	return nil
}

// Unload evicts a model by sending a zero keep-alive.
func (e *OllamaEngine) Unload(ctx context.Context, name string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	req := &api.GenerateRequest{
		Model:     name,
		KeepAlive: &api.Duration{Duration: 0},
	}
	if err := e.client.Generate(ctx, req, func(api.GenerateResponse) error { return nil }); err != nil {
		return fmt.Errorf("failed to unload model %s: %w", name, engineError(err))
	}
	return nil
}

// Ping checks that the engine answers.
func (e *OllamaEngine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.client.Heartbeat(ctx)
}

func (e *OllamaEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// engineError flattens API status errors into a readable message.
func engineError(err error) error {
	var status api.StatusError
	if errors.As(err, &status) {
		msg := status.ErrorMessage
		if msg == "" {
			msg = status.Status
		}
		return fmt.Errorf("Ollama API error (HTTP %d): %s", status.StatusCode, msg)
	}
	return err
}
