package config

import (
	"fmt"
	"os"
	"time"
)

// EngineProvider identifies the text-generation backend.
type EngineProvider string

const (
	EngineProviderOllama EngineProvider = "ollama"

	DefaultOllamaURL     = "http://localhost:11434"
	DefaultModel         = "llama3.2"
	DefaultContextWindow = 2000
)

// EngineConfig configures the generation engine that models are loaded into.
//
// Example:
//
//	engine:
//	  provider: ollama
//	  base_url: ${OLLAMA_HOST:-http://localhost:11434}
//	  model: llama3.2
//	  keep_alive: 30m
type EngineConfig struct {
	// Provider is the engine type. Only "ollama" is supported.
	Provider EngineProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=ollama,default=ollama"`

	// BaseURL of the engine API.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	// Model to load at startup. Empty means nothing is loaded until /v1/text/load.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Startup model"`

	// KeepAlive is how long the engine keeps a loaded model resident.
	KeepAlive Duration `yaml:"keep_alive,omitempty" json:"keep_alive,omitempty" jsonschema:"title=Keep alive"`

	// Timeout for non-streaming engine calls (list, show, load).
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout"`

	// ContextWindow used when a load request does not set n_ctx.
	ContextWindow int `yaml:"context_window,omitempty" json:"context_window,omitempty" jsonschema:"title=Context window,minimum=1,default=2000"`
}

func (c *EngineConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = EngineProviderOllama
	}
	if c.BaseURL == "" {
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			c.BaseURL = host
		} else {
			c.BaseURL = DefaultOllamaURL
		}
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = Duration(30 * time.Minute)
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(60 * time.Second)
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = DefaultContextWindow
	}
}

func (c *EngineConfig) Validate() error {
	if c.Provider != EngineProviderOllama {
		return fmt.Errorf("invalid engine provider %q (valid: ollama)", c.Provider)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("context_window must be non-negative")
	}
	return nil
}
