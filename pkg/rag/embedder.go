package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedFunc adapts a function, including a chromem.EmbeddingFunc, to
// Embedder.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama", "":
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		if baseURL == "" {
			baseURL = config.DefaultOllamaURL
		}
		return EmbedFunc(chromem.NewEmbeddingFuncOllama(cfg.Model, baseURL+"/api")), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %q", cfg.Provider)
	}
}
