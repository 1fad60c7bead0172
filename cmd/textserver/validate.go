package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config      string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`
	Format      string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the configuration with defaults applied and env vars resolved."`
}

type validationResult struct {
	Valid  bool   `json:"valid"`
	Config string `json:"config"`
	Error  string `json:"error,omitempty"`
}

func (c *ValidateCmd) Run() error {
	config.LoadDotEnvForConfig(c.Config)

	cfg, loader, err := config.LoadConfigFile(context.Background(), c.Config)
	if loader != nil {
		defer loader.Close()
	}
	if err != nil {
		c.report(validationResult{Config: c.Config, Error: err.Error()})
		return fmt.Errorf("configuration is invalid")
	}

	if c.PrintConfig {
		if c.Format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	}

	c.report(validationResult{Valid: true, Config: c.Config})
	return nil
}

func (c *ValidateCmd) report(res validationResult) {
	if c.Format == "json" {
		_ = json.NewEncoder(os.Stdout).Encode(res)
		return
	}
	if res.Valid {
		fmt.Printf("✓ %s is valid\n", res.Config)
		return
	}
	fmt.Fprintf(os.Stderr, "✗ %s: %s\n", res.Config, res.Error)
}
