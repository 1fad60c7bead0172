package inference

import (
	"context"
	"strings"
)

// EventGeneratingTokens is the event name for every streamed token.
const EventGeneratingTokens = "GENERATING_TOKENS"

// StreamEvent is one wire-level event.
type StreamEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// EventSink delivers events to the caller. The first Send commits the
// response to streaming.
type EventSink interface {
	Send(ev StreamEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(StreamEvent) error

func (f EventSinkFunc) Send(ev StreamEvent) error { return f(ev) }

// RelayResult reports what a relay delivered.
type RelayResult struct {
	Text   string
	Events int
}

// Relay forwards each token as its own event, in order and without
// buffering. A chunk error stops the relay with a GenerationStreamError;
// events already sent stay sent. Cancelling ctx stops the relay before the
// next token is pulled.
func Relay(ctx context.Context, tokens <-chan StreamChunk, sink EventSink) (RelayResult, error) {
	var (
		res RelayResult
		b   strings.Builder
	)
	for {
		select {
		case <-ctx.Done():
			res.Text = b.String()
			return res, newError(KindGenerationStreamError, "stream", "stream cancelled", ctx.Err())
		case chunk, ok := <-tokens:
			if !ok {
				res.Text = b.String()
				return res, nil
			}
			if chunk.Err != nil {
				res.Text = b.String()
				return res, newError(KindGenerationStreamError, "stream", "generation failed mid-stream", chunk.Err)
			}
			if err := sink.Send(StreamEvent{Event: EventGeneratingTokens, Data: chunk.Text}); err != nil {
				res.Text = b.String()
				return res, newError(KindGenerationStreamError, "stream", "failed to deliver event", err)
			}
			b.WriteString(chunk.Text)
			res.Events++
		}
	}
}
