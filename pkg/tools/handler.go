package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"log/slog"
	"strings"
	"sync"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/httpclient"
)

// Handler executes a user tool. The kind is selected by the definition path.
type Handler interface {
	Kind() string
	Call(ctx context.Context, args map[string]any) (any, error)
	Close() error
}

const (
	HandlerCommand = "command"
	HandlerWebhook = "webhook"
	HandlerMCP     = "mcp"

	prefixCommand  = "command:"
	prefixMCPStdio = "mcp+stdio:"
	prefixMCPHTTP  = "mcp+http"
)

// HandlerFactory binds definition paths to handlers.
type HandlerFactory struct {
	cfg  config.ToolsConfig
	http *httpclient.Client
}

func NewHandlerFactory(cfg config.ToolsConfig) *HandlerFactory {
	return &HandlerFactory{
		cfg: cfg,
		http: httpclient.New(
			httpclient.WithTimeout(cfg.Webhook.Timeout.Duration()),
			httpclient.WithMaxRetries(0),
		),
	}
}

// WithHTTPClient overrides the webhook client.
func (f *HandlerFactory) WithHTTPClient(c *http.Client) *HandlerFactory {
	f.http = httpclient.New(
		httpclient.WithHTTPClient(c),
		httpclient.WithMaxRetries(0),
	)
	return f
}

// Bind returns the handler for def.Path.
//
//	command:<executable> [args...]
//	http(s)://host/path
//	mcp+stdio:<command> [args...]#<tool>
//	mcp+http(s)://host/path#<tool>
//
// The MCP tool name defaults to the definition name.
func (f *HandlerFactory) Bind(def Definition) (Handler, error) {
	path := strings.TrimSpace(def.Path)
	switch {
	case strings.HasPrefix(path, prefixCommand):
		h, err := newCommandHandler(strings.TrimPrefix(path, prefixCommand), f.cfg.Command)
		if err != nil {
			var invalid *InvalidDefinitionError
			if errors.As(err, &invalid) {
				invalid.Name = def.Name
			}
			return nil, err
		}
		return h, nil
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return &webhookHandler{url: path, client: f.http}, nil
	case strings.HasPrefix(path, prefixMCPStdio):
		target, tool := splitFragment(strings.TrimPrefix(path, prefixMCPStdio), def.Name)
		fields := strings.Fields(target)
		if len(fields) == 0 {
			return nil, &InvalidDefinitionError{Name: def.Name, Reason: "mcp+stdio path needs a command"}
		}
		return newMCPHandler(mcpTarget{command: fields[0], args: fields[1:], tool: tool}, f.cfg.MCP), nil
	case strings.HasPrefix(path, prefixMCPHTTP):
		target, tool := splitFragment(strings.TrimPrefix(path, "mcp+"), def.Name)
		return newMCPHandler(mcpTarget{url: target, tool: tool}, f.cfg.MCP), nil
	case path == "":
		return nil, &InvalidDefinitionError{Name: def.Name, Reason: "path is required"}
	default:
		return nil, &InvalidDefinitionError{Name: def.Name, Reason: fmt.Sprintf("unsupported path %q", path)}
	}
}

func splitFragment(s, fallback string) (string, string) {
	if i := strings.LastIndex(s, "#"); i >= 0 && i < len(s)-1 {
		return s[:i], s[i+1:]
	}
	return strings.TrimSuffix(s, "#"), fallback
}

// decodeOutput returns structured JSON when the output is JSON, otherwise
// the trimmed text.
func decodeOutput(out []byte) any {
	text := strings.TrimSpace(string(out))
	if text == "" {
		return ""
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

// UserTool is a user-defined tool bound to a handler. A retired tool closes
// its handler once the last in-flight call returns.
type UserTool struct {
	def     Definition
	handler Handler

	mu      sync.Mutex
	active  int
	retired bool
}

func newUserTool(def Definition, handler Handler) *UserTool {
	return &UserTool{def: def, handler: handler}
}

func (t *UserTool) Definition() Definition { return t.def }

func (t *UserTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()
	defer t.release()
	return t.handler.Call(ctx, args)
}

func (t *UserTool) release() {
	t.mu.Lock()
	t.active--
	idle := t.retired && t.active == 0
	t.mu.Unlock()
	if idle {
		t.closeHandler()
	}
}

// retire marks the tool as replaced. The handler is closed now if idle,
// otherwise when the last call finishes.
func (t *UserTool) retire() {
	t.mu.Lock()
	t.retired = true
	idle := t.active == 0
	t.mu.Unlock()
	if idle {
		t.closeHandler()
	}
}

func (t *UserTool) closeHandler() {
	if err := t.handler.Close(); err != nil {
		slog.Debug("Failed to close tool handler", "tool", t.def.Name, "error", err)
	}
}

// Kind reports the handler kind.
func (t *UserTool) Kind() string { return t.handler.Kind() }
