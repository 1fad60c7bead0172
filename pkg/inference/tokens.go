package inference

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

const (
	systemMessageBuffer = 100
	fallbackMaxTokens   = 128
)

// CalcMaxTokens returns the generation budget. A positive request is used
// as is. Instruct reserves half the window for the prompt plus a buffer for
// the system message; chat keeps an eighth so history has room.
func CalcMaxTokens(requested, contextWindow int, mode string) int {
	if requested > 0 {
		return requested
	}
	var budget int
	if mode == ModeInstruct {
		budget = contextWindow - contextWindow/2 - systemMessageBuffer
	} else {
		budget = contextWindow/8 - systemMessageBuffer
	}
	if budget <= 0 {
		return fallbackMaxTokens
	}
	return budget
}

// TokenCounter counts tokens in text.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with a BPE encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// NewTiktokenCounter loads the encoding for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &TiktokenCounter{encoding: enc}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}
	encodingCache[model] = enc
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimateCounter assumes four characters per token.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// DefaultTokenCounter returns a tiktoken counter, or an estimate when the
// encoding cannot be loaded (it is fetched on first use).
func DefaultTokenCounter(model string) TokenCounter {
	c, err := NewTiktokenCounter(model)
	if err != nil {
		slog.Warn("Falling back to estimated token counts", "error", err)
		return EstimateCounter{}
	}
	return c
}

const tokensPerMessage = 3

// CountMessages counts a chat history including per-message overhead.
func CountMessages(c TokenCounter, messages []prompt.Message) int {
	total := tokensPerMessage
	for _, m := range messages {
		total += tokensPerMessage + c.Count(string(m.Role)) + c.Count(m.Content)
	}
	return total
}

// FitWithinLimit keeps the most recent messages that fit in maxTokens. A
// leading system message and the final message are always kept, even when
// they alone exceed the limit.
func FitWithinLimit(c TokenCounter, messages []prompt.Message, maxTokens int) []prompt.Message {
	if len(messages) == 0 || maxTokens <= 0 {
		return messages
	}

	var head []prompt.Message
	rest := messages
	used := tokensPerMessage
	if messages[0].Role == prompt.RoleSystem {
		head = messages[:1]
		rest = messages[1:]
		used += CountMessages(c, head) - tokensPerMessage
	}

	if len(rest) == 0 {
		return messages
	}
	start := len(rest) - 1
	used += CountMessages(c, rest[start:]) - tokensPerMessage
	for i := start - 1; i >= 0; i-- {
		cost := CountMessages(c, rest[i:i+1]) - tokensPerMessage
		if used+cost > maxTokens {
			break
		}
		used += cost
		start = i
	}

	fitted := make([]prompt.Message, 0, len(head)+len(rest)-start)
	fitted = append(fitted, head...)
	return append(fitted, rest[start:]...)
}
