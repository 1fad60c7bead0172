// Package tools holds the tool registry used by agent mode.
//
// Tools come from two sources: prebuilt Go functions compiled into the
// binary and user-defined JSON definitions bound to a fixed set of handler
// kinds (command, webhook, mcp). The registry resolves a name against the
// prebuilt source first and the user source second.
package tools

import "context"

// Tool is a callable with a declared argument schema.
type Tool interface {
	Definition() Definition
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Source enumerates tools from one location.
type Source interface {
	Name() string
	Lookup(name string) (Tool, bool)
	List() []Tool
}
