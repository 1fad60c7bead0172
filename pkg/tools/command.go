package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

// commandHandler runs a local executable. Arguments are written to stdin as
// JSON and stdout is the result. No shell is involved.
type commandHandler struct {
	executable string
	args       []string
	config     config.CommandHandlerConfig
}

func newCommandHandler(commandLine string, cfg config.CommandHandlerConfig) (*commandHandler, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, &InvalidDefinitionError{Reason: "command path needs an executable"}
	}
	h := &commandHandler{executable: fields[0], args: fields[1:], config: cfg}
	if len(cfg.AllowedCommands) == 0 {
		return nil, &InvalidDefinitionError{
			Reason: "command tools are disabled; list the executable in tools.command.allowed_commands",
		}
	}
	if !h.isCommandAllowed(h.executable) {
		return nil, &InvalidDefinitionError{
			Reason: fmt.Sprintf("command not allowed: %s (allowed: %v)", h.executable, cfg.AllowedCommands),
		}
	}
	return h, nil
}

func (h *commandHandler) Kind() string { return HandlerCommand }

func (h *commandHandler) Call(ctx context.Context, args map[string]any) (any, error) {
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	if d := h.config.MaxExecutionTime.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, h.executable, h.args...)
	cmd.Dir = h.config.WorkingDirectory
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", h.executable, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", h.executable, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", h.executable, err)
	}
	return decodeOutput(stdout.Bytes()), nil
}

func (h *commandHandler) Close() error { return nil }

func (h *commandHandler) isCommandAllowed(command string) bool {
	return slices.Contains(h.config.AllowedCommands, command)
}
