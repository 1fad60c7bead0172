package llms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

// ModelInfo describes the loaded model.
type ModelInfo struct {
	ID            string                      `json:"modelId"`
	Mode          string                      `json:"mode,omitempty"`
	ContextWindow int                         `json:"n_ctx"`
	Details       *ModelDetails               `json:"details,omitempty"`
	Init          InitOptions                 `json:"init"`
	Call          inference.GenerationOptions `json:"call"`
	LoadedAt      time.Time                   `json:"loadedAt"`
}

// OllamaModel is a handle to a model resident in the engine. It is
// immutable once loaded and safe for concurrent use.
type OllamaModel struct {
	engine *OllamaEngine
	info   ModelInfo
}

var _ inference.Model = (*OllamaModel)(nil)

func (m *OllamaModel) ID() string { return m.info.ID }

func (m *OllamaModel) ContextWindow() int { return m.info.ContextWindow }

func (m *OllamaModel) Info() ModelInfo { return m.info }

// Generate runs a buffered completion or chat.
func (m *OllamaModel) Generate(ctx context.Context, req inference.GenerateRequest) (string, error) {
	var b strings.Builder
	err := m.run(ctx, req, false, func(tok string) error {
		b.WriteString(tok)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Stream yields tokens as the engine produces them. The channel closes when
// generation ends; a failure arrives as a final chunk with Err set.
func (m *OllamaModel) Stream(ctx context.Context, req inference.GenerateRequest) (<-chan inference.StreamChunk, error) {
	out := make(chan inference.StreamChunk, 64)
	go func() {
		defer close(out)
		err := m.run(ctx, req, true, func(tok string) error {
			select {
			case out <- inference.StreamChunk{Text: tok}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case out <- inference.StreamChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// run uses the chat endpoint for message lists and the generate endpoint
// otherwise. A message format switches generate to raw mode with the
// prompt wrapped locally, as does a load-time chat format for histories.
func (m *OllamaModel) run(ctx context.Context, req inference.GenerateRequest, stream bool, emit func(string) error) error {
	opts := generationOptions(m.info.Init, req.Options)
	keepAlive := &api.Duration{Duration: m.engine.keepAlive}

	if len(req.Messages) > 0 && m.info.Init.ChatFormat == nil {
		chatReq := &api.ChatRequest{
			Model:     m.info.ID,
			Messages:  chatMessages(req.Messages, req.System),
			Stream:    &stream,
			KeepAlive: keepAlive,
			Options:   opts,
		}
		err := m.engine.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			return emit(resp.Message.Content)
		})
		if err != nil {
			return fmt.Errorf("chat with %s failed: %w", m.info.ID, engineError(err))
		}
		return nil
	}

	genReq := &api.GenerateRequest{
		Model:     m.info.ID,
		Prompt:    req.Prompt,
		System:    prompt.EffectiveSystemMessage(req.System),
		Stream:    &stream,
		KeepAlive: keepAlive,
		Options:   opts,
	}
	switch {
	case len(req.Messages) > 0:
		genReq.Prompt = prompt.FormatChat(req.Messages, req.System, *m.info.Init.ChatFormat)
		genReq.System = ""
		genReq.Raw = true
	case req.MessageFormat != "":
		genReq.Prompt = prompt.FormatCompletion(req.Prompt, req.System, req.MessageFormat)
		genReq.System = ""
		genReq.Raw = true
	}
	err := m.engine.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		if resp.Response == "" {
			return nil
		}
		return emit(resp.Response)
	})
	if err != nil {
		return fmt.Errorf("generate with %s failed: %w", m.info.ID, engineError(err))
	}
	return nil
}

func chatMessages(messages []prompt.Message, system string) []api.Message {
	out := make([]api.Message, 0, len(messages)+1)
	if len(messages) == 0 || messages[0].Role != prompt.RoleSystem {
		out = append(out, api.Message{Role: string(prompt.RoleSystem), Content: prompt.EffectiveSystemMessage(system)})
	}
	for _, msg := range messages {
		out = append(out, api.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
