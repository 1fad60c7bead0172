package inference

import (
	"context"
	"time"

	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

// StreamChunk is one element of a token stream. A chunk with Err set is the
// last one; a closed channel means the stream completed.
type StreamChunk struct {
	Text string
	Err  error
}

// GenerateRequest is what the orchestrator hands to a model. Messages is
// set for chat; otherwise Prompt and System are used with MessageFormat.
type GenerateRequest struct {
	Prompt        string
	System        string
	Messages      []prompt.Message
	MessageFormat string
	Options       GenerationOptions
}

// Model is a handle to a loaded model. The host owns its lifecycle.
type Model interface {
	ID() string
	ContextWindow() int
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Stream(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error)
}

// Source is a retrieved document chunk that informed an answer.
type Source struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievalRequest is what the orchestrator hands to a retriever.
type RetrievalRequest struct {
	Query         string
	Collection    string
	Template      string
	TopK          int
	ResponseMode  string
	System        string
	MessageFormat string
	Options       GenerationOptions
}

// RetrievalResult carries either the complete text or a token stream, plus
// the sources used.
type RetrievalResult struct {
	Text    string
	Stream  <-chan StreamChunk
	Sources []Source
}

// Retriever answers a query against one collection using model.
type Retriever interface {
	Retrieve(ctx context.Context, model Model, req RetrievalRequest) (*RetrievalResult, error)
}

// Record summarizes one finished request.
type Record struct {
	RequestID        string
	Kind             Kind
	Model            string
	Tool             string
	Collection       string
	PromptChars      int
	ResponseChars    int
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	Status           State
	Error            string
	CreatedAt        time.Time
}

// Recorder receives a Record after every request.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, Record) error { return nil }
