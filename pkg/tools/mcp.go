package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

type mcpTarget struct {
	command string
	args    []string
	url     string
	tool    string
}

// mcpHandler calls one tool on an MCP server. The connection is opened on
// first use and reopened after Close.
type mcpHandler struct {
	target mcpTarget
	config config.MCPHandlerConfig

	mu     sync.Mutex
	client *client.Client
}

func newMCPHandler(target mcpTarget, cfg config.MCPHandlerConfig) *mcpHandler {
	return &mcpHandler{target: target, config: cfg}
}

func (h *mcpHandler) Kind() string { return HandlerMCP }

func (h *mcpHandler) Call(ctx context.Context, args map[string]any) (any, error) {
	if d := h.config.Timeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	c, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      h.target.tool,
			Arguments: args,
		},
	})
	if err != nil {
		h.reset()
		return nil, fmt.Errorf("mcp call %s: %w", h.target.tool, err)
	}

	text := collectText(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("mcp tool %s reported an error: %s", h.target.tool, text)
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return decodeOutput([]byte(text)), nil
}

func (h *mcpHandler) connect(ctx context.Context) (*client.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}

	var (
		c   *client.Client
		err error
	)
	if h.target.url != "" {
		c, err = client.NewStreamableHttpClient(h.target.url)
		if err == nil {
			err = c.Start(ctx)
		}
	} else {
		// The stdio client starts its subprocess on construction.
		c, err = client.NewStdioMCPClient(h.target.command, nil, h.target.args...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "textserver", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP: %w", err)
	}

	slog.Debug("Connected to MCP server", "target", h.describe(), "tool", h.target.tool)
	h.client = c
	return c, nil
}

func (h *mcpHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		_ = h.client.Close()
		h.client = nil
	}
}

func (h *mcpHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}

func (h *mcpHandler) describe() string {
	if h.target.url != "" {
		return h.target.url
	}
	return strings.TrimSpace(h.target.command + " " + strings.Join(h.target.args, " "))
}

func collectText(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
