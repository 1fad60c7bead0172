// Package config loads the gateway configuration.
//
// Configuration is read from a YAML (or JSON) file, environment variables
// are expanded, the result is decoded with mapstructure, defaults are
// applied and every section is validated. A missing file is not an error:
// Default returns a zero-config setup pointing at a local Ollama.
package config

import (
	"fmt"

	"github.com/dieharders/ai-text-server-sub000/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig         `yaml:"server,omitempty"`
	Logger        LoggerConfig         `yaml:"logger,omitempty"`
	Engine        EngineConfig         `yaml:"engine,omitempty"`
	Tools         ToolsConfig          `yaml:"tools,omitempty"`
	RAG           RAGConfig            `yaml:"rag,omitempty"`
	History       HistoryConfig        `yaml:"history,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Engine.SetDefaults()
	c.Tools.SetDefaults()
	c.RAG.SetDefaults()
	c.History.SetDefaults()
	c.Observability.SetDefaults()
}

func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"logger", c.Logger.Validate},
		{"engine", c.Engine.Validate},
		{"tools", c.Tools.Validate},
		{"rag", c.RAG.Validate},
		{"history", c.History.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}
