package config

import (
	"fmt"
	"time"
)

// ToolsConfig configures the prebuilt and user-defined tool sources.
//
// Example:
//
//	tools:
//	  prebuilt: [calculator, clock]
//	  user_dir: ./tools/functions
//	  command:
//	    allowed_commands: [python3, ./bin/lookup]
//	    max_execution_time: 30s
type ToolsConfig struct {
	// Prebuilt lists the built-in tools to expose. Empty means all.
	Prebuilt []string `yaml:"prebuilt,omitempty"`

	// UserDir holds user tool definitions (*.json).
	UserDir string `yaml:"user_dir,omitempty"`

	// Watch rescans UserDir when files change.
	Watch *bool `yaml:"watch,omitempty"`

	Command CommandHandlerConfig `yaml:"command,omitempty"`
	Webhook WebhookHandlerConfig `yaml:"webhook,omitempty"`
	MCP     MCPHandlerConfig     `yaml:"mcp,omitempty"`
}

// CommandHandlerConfig configures tools backed by a local executable.
type CommandHandlerConfig struct {
	// AllowedCommands lists the executables command tools may run. Empty
	// disables command tools.
	AllowedCommands []string `yaml:"allowed_commands,omitempty"`

	// WorkingDirectory for spawned commands.
	WorkingDirectory string `yaml:"working_directory,omitempty"`

	// MaxExecutionTime kills a command that runs longer.
	MaxExecutionTime Duration `yaml:"max_execution_time,omitempty"`
}

// WebhookHandlerConfig configures tools backed by an HTTP endpoint. Tool
// calls are never retried.
type WebhookHandlerConfig struct {
	Timeout Duration `yaml:"timeout,omitempty"`
}

// MCPHandlerConfig configures tools backed by an MCP server.
type MCPHandlerConfig struct {
	Timeout Duration `yaml:"timeout,omitempty"`
}

func (c *ToolsConfig) SetDefaults() {
	if c.UserDir == "" {
		c.UserDir = "tools/functions"
	}
	if c.Watch == nil {
		c.Watch = BoolPtr(true)
	}
	if c.Command.WorkingDirectory == "" {
		c.Command.WorkingDirectory = "."
	}
	if c.Command.MaxExecutionTime == 0 {
		c.Command.MaxExecutionTime = Duration(30 * time.Second)
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = Duration(30 * time.Second)
	}
	if c.MCP.Timeout == 0 {
		c.MCP.Timeout = Duration(60 * time.Second)
	}
}

func (c *ToolsConfig) Validate() error {
	if c.Command.MaxExecutionTime < 0 {
		return fmt.Errorf("command.max_execution_time must be non-negative")
	}
	seen := make(map[string]bool, len(c.Prebuilt))
	for _, name := range c.Prebuilt {
		if seen[name] {
			return fmt.Errorf("prebuilt tool %q listed twice", name)
		}
		seen[name] = true
	}
	return nil
}
