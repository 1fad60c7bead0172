package inference

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dieharders/ai-text-server-sub000/pkg/observability"
	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
)

// State is a stage of a single request.
type State string

const (
	StateResolving   State = "resolving"
	StatePreparing   State = "preparing"
	StateDispatching State = "dispatching"
	StateStreaming   State = "streaming"
	StateParsing     State = "parsing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// SuccessMessage is the envelope message of a successful inference.
const SuccessMessage = "AI generated response."

// ToolRegistry resolves, describes and invokes tools.
type ToolRegistry interface {
	Resolve(name string) (tools.Tool, error)
	Describe(t tools.Tool) tools.Description
	ToolInvoker
}

// Orchestrator runs inference requests. It holds no per-request state and
// is safe for concurrent use; the model handle is passed on every call.
type Orchestrator struct {
	tools     ToolRegistry
	retriever Retriever
	extractor BlockExtractor
	parser    *OutputParser
	counter   TokenCounter
	recorder  Recorder
	tracer    trace.Tracer
	metrics   observability.Metrics
}

type Option func(*Orchestrator)

func WithTools(registry ToolRegistry) Option {
	return func(o *Orchestrator) { o.tools = registry }
}

func WithRetriever(r Retriever) Option {
	return func(o *Orchestrator) { o.retriever = r }
}

func WithExtractor(e BlockExtractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

func WithTokenCounter(c TokenCounter) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.counter = c
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

func WithMetrics(m observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = observability.OrNoop(m) }
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor: RegexExtractor{},
		counter:   EstimateCounter{},
		recorder:  noopRecorder{},
		tracer:    noop.NewTracerProvider().Tracer(""),
		metrics:   observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.parser = NewOutputParser(o.extractor, o.tools)
	return o
}

// Result is the outcome of Run.
type Result struct {
	Response *Response
	// Streamed reports whether any event reached the sink.
	Streamed bool
}

// Respond runs req and converts the outcome into an envelope. When started
// is true events were already delivered and the envelope must not be
// written; a failure then simply ends the stream.
func (o *Orchestrator) Respond(ctx context.Context, model Model, req Request, sink EventSink) (env Envelope, started bool) {
	res, err := o.Run(ctx, model, req, sink)
	if err != nil {
		return Fail(err), res != nil && res.Streamed
	}
	return OK(SuccessMessage, res.Response), res.Streamed
}

// Run executes one request. The returned Result is non-nil even on error
// so callers can tell whether streaming began.
func (o *Orchestrator) Run(ctx context.Context, model Model, req Request, sink EventSink) (*Result, error) {
	r := &run{
		o:     o,
		state: StateResolving,
		sink:  &countingSink{next: sink},
		rec: Record{
			RequestID:   RequestIDFrom(ctx),
			PromptChars: len(req.Prompt),
			CreatedAt:   time.Now(),
		},
	}
	if r.rec.RequestID == "" {
		r.rec.RequestID = uuid.NewString()
	}

	ctx, span := o.tracer.Start(ctx, observability.SpanInference)
	start := time.Now()

	resp, err := r.execute(ctx, model, req)

	r.rec.Duration = time.Since(start)
	if err != nil {
		r.transition(StateFailed)
		r.rec.Error = err.Error()
		slog.Warn("Inference failed",
			"request_id", r.rec.RequestID, "kind", r.rec.Kind, "error_kind", KindOf(err), "error", err)
	} else {
		r.transition(StateDone)
		r.rec.ResponseChars = len(resp.Text)
	}
	r.rec.Status = r.state

	span.SetAttributes(attribute.String(observability.AttrMode, string(r.rec.Kind)))
	observability.EndSpan(span, err)
	o.metrics.RecordInference(ctx, string(r.rec.Kind), r.rec.Duration, err)
	if recErr := o.recorder.Record(context.WithoutCancel(ctx), r.rec); recErr != nil {
		slog.Warn("Failed to record inference", "request_id", r.rec.RequestID, "error", recErr)
	}

	return &Result{Response: resp, Streamed: r.sink.sent > 0}, err
}

type run struct {
	o     *Orchestrator
	state State
	sink  *countingSink
	rec   Record
}

func (r *run) transition(to State) {
	slog.Debug("Inference state", "request_id", r.rec.RequestID, "from", r.state, "to", to)
	r.state = to
}

func (r *run) execute(ctx context.Context, model Model, req Request) (*Response, error) {
	if model == nil {
		return nil, newError(KindPreconditionError, "resolve", "no model loaded", nil)
	}
	r.rec.Model = model.ID()

	strategy, err := NewStrategy(req)
	if err != nil {
		return nil, err
	}
	r.rec.Kind = strategy.Kind()

	r.transition(StatePreparing)
	window := contextWindow(model, req)

	switch s := strategy.(type) {
	case AgentRequest:
		return r.agent(ctx, model, s)
	case RAGRequest:
		return r.rag(ctx, model, s)
	case ChatRequest:
		return r.chat(ctx, model, s, window)
	case InstructRequest:
		return r.instruct(ctx, model, s, window)
	default:
		return nil, configurationError("resolve", "no usable mode/collection combination")
	}
}

// contextWindow prefers the loaded model's window over the request's.
func contextWindow(model Model, req Request) int {
	if w := model.ContextWindow(); w > 0 {
		return w
	}
	if req.NCtx > 0 {
		return req.NCtx
	}
	return DefaultContextWindow
}

func (r *run) instruct(ctx context.Context, model Model, s InstructRequest, window int) (*Response, error) {
	text, err := prompt.BuildPrompt(s.PromptTemplate, s.Prompt, nil, false)
	if err != nil {
		return nil, configurationError("prepare", err.Error())
	}

	opts := s.Options
	opts.MaxTokens = CalcMaxTokens(opts.MaxTokens, window, s.Mode)
	opts.NCtx = window

	return r.generate(ctx, model, GenerateRequest{
		Prompt:        text,
		System:        prompt.BuildSystemMessage(s.SystemMessage, s.Prompt, nil),
		MessageFormat: s.MessageFormat,
		Options:       opts,
	})
}

func (r *run) chat(ctx context.Context, model Model, s ChatRequest, window int) (*Response, error) {
	system := prompt.BuildSystemMessage(s.SystemMessage, s.Prompt, nil)

	var messages []prompt.Message
	if system != "" && (len(s.Messages) == 0 || s.Messages[0].Role != prompt.RoleSystem) {
		messages = append(messages, prompt.Message{Role: prompt.RoleSystem, Content: system})
	}
	messages = append(messages, s.Messages...)
	if s.Prompt != "" {
		text, err := prompt.BuildPrompt(s.PromptTemplate, s.Prompt, nil, false)
		if err != nil {
			return nil, configurationError("prepare", err.Error())
		}
		messages = append(messages, prompt.Message{Role: prompt.RoleUser, Content: text})
	}
	if len(messages) == 0 {
		return nil, configurationError("prepare", "chat mode requires messages or a prompt")
	}

	opts := s.Options
	opts.MaxTokens = CalcMaxTokens(opts.MaxTokens, window, s.Mode)
	opts.NCtx = window

	fitted := FitWithinLimit(r.o.counter, messages, window-opts.MaxTokens)
	if dropped := len(messages) - len(fitted); dropped > 0 {
		slog.Debug("Trimmed chat history to fit context window",
			"request_id", r.rec.RequestID, "dropped", dropped, "window", window)
	}

	return r.generate(ctx, model, GenerateRequest{
		Messages:      fitted,
		System:        system,
		MessageFormat: s.MessageFormat,
		Options:       opts,
	})
}

func (r *run) rag(ctx context.Context, model Model, s RAGRequest) (*Response, error) {
	if r.o.retriever == nil {
		return nil, newError(KindPreconditionError, "prepare", "retrieval is not configured", nil)
	}
	r.rec.Collection = s.Collection

	opts := s.Options
	opts.MaxTokens = CalcMaxTokens(opts.MaxTokens, contextWindowOrDefault(model), s.Mode)
	opts.NCtx = 0

	rreq := RetrievalRequest{
		Query:         s.Prompt,
		Collection:    s.Collection,
		Template:      s.Template,
		TopK:          s.TopK,
		ResponseMode:  s.ResponseMode,
		System:        prompt.BuildSystemMessage(s.SystemMessage, s.Prompt, nil),
		MessageFormat: s.MessageFormat,
		Options:       opts,
	}
	if r.sink.next == nil {
		rreq.Options.Stream = false
	}

	r.transition(StateDispatching)
	ctx, span := r.o.tracer.Start(ctx, observability.SpanRetrieval,
		trace.WithAttributes(attribute.String(observability.AttrCollection, s.Collection)))
	start := time.Now()
	res, err := r.o.retriever.Retrieve(ctx, model, rreq)
	hits := 0
	if res != nil {
		hits = len(res.Sources)
	}
	r.o.metrics.RecordRetrieval(ctx, s.Collection, time.Since(start), hits, err)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, classify("retrieve", err)
	}

	resp := &Response{Text: res.Text, Sources: res.Sources}
	if res.Stream != nil {
		r.transition(StateStreaming)
		relayed, err := Relay(ctx, res.Stream, r.sink)
		resp.Text = relayed.Text
		if err != nil {
			return nil, err
		}
	}
	r.rec.PromptTokens = r.o.counter.Count(s.Prompt)
	r.rec.CompletionTokens = r.o.counter.Count(resp.Text)
	return resp, nil
}

func contextWindowOrDefault(model Model) int {
	if w := model.ContextWindow(); w > 0 {
		return w
	}
	return DefaultContextWindow
}

func (r *run) agent(ctx context.Context, model Model, s AgentRequest) (*Response, error) {
	if r.o.tools == nil {
		return nil, newError(KindPreconditionError, "prepare", "tool registry is not configured", nil)
	}
	r.rec.Tool = s.Tool

	tool, err := r.o.tools.Resolve(s.Tool)
	if err != nil {
		return nil, classify("resolve tool", err)
	}
	desc := r.o.tools.Describe(tool)
	toolCtx := desc.PromptContext(s.AssignedTools)

	text, err := prompt.BuildPrompt(s.PromptTemplate, s.Prompt, toolCtx, true)
	if err != nil {
		if errors.Is(err, prompt.ErrTemplateRequired) {
			return nil, configurationError("prepare", "agent mode requires a prompt template")
		}
		return nil, configurationError("prepare", err.Error())
	}

	wantStream := s.Options.Stream
	opts := s.Options
	opts.Stream = false
	opts.MaxTokens = CalcMaxTokens(opts.MaxTokens, contextWindowOrDefault(model), s.Mode)
	opts.NCtx = 0

	generated, err := r.generate(ctx, model, GenerateRequest{
		Prompt:        text,
		System:        prompt.BuildSystemMessage(s.SystemMessage, s.Prompt, toolCtx),
		MessageFormat: s.MessageFormat,
		Options:       opts,
	})
	if err != nil {
		return nil, err
	}

	r.transition(StateParsing)
	parsed, err := r.o.parser.Parse(ctx, generated.Text, tool, desc)
	if err != nil {
		return nil, err
	}

	resp := &Response{Text: parsed.Text, Raw: parsed.Raw}
	if wantStream && r.sink.next != nil {
		r.transition(StateStreaming)
		if err := r.sink.Send(StreamEvent{Event: EventGeneratingTokens, Data: parsed.Text}); err != nil {
			return nil, newError(KindGenerationStreamError, "stream", "failed to deliver event", err)
		}
	}
	return resp, nil
}

// generate dispatches to the model, streaming when requested and a sink
// is available.
func (r *run) generate(ctx context.Context, model Model, req GenerateRequest) (*Response, error) {
	r.transition(StateDispatching)
	if r.sink.next == nil {
		req.Options.Stream = false
	}

	ctx, span := r.o.tracer.Start(ctx, observability.SpanLLMGenerate,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, model.ID()),
			attribute.Bool(observability.AttrLLMStream, req.Options.Stream),
		))
	start := time.Now()
	promptTokens := r.countPrompt(req)

	var (
		text string
		err  error
	)
	if req.Options.Stream {
		var tokens <-chan StreamChunk
		tokens, err = model.Stream(ctx, req)
		if err != nil {
			err = classify("generate", err)
		} else {
			r.transition(StateStreaming)
			var relayed RelayResult
			relayed, err = Relay(ctx, tokens, r.sink)
			text = relayed.Text
		}
	} else {
		text, err = model.Generate(ctx, req)
		if err != nil {
			err = classify("generate", err)
		}
	}

	completionTokens := r.o.counter.Count(text)
	r.rec.PromptTokens += promptTokens
	r.rec.CompletionTokens += completionTokens
	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, promptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, completionTokens),
	)
	r.o.metrics.RecordLLMCall(ctx, model.ID(), time.Since(start), promptTokens, completionTokens, err)
	observability.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	return &Response{Text: text}, nil
}

func (r *run) countPrompt(req GenerateRequest) int {
	if len(req.Messages) > 0 {
		return CountMessages(r.o.counter, req.Messages)
	}
	return r.o.counter.Count(req.System) + r.o.counter.Count(req.Prompt)
}

type countingSink struct {
	next EventSink
	sent int
}

func (s *countingSink) Send(ev StreamEvent) error {
	if s.next == nil {
		return errors.New("no event sink")
	}
	if err := s.next.Send(ev); err != nil {
		return err
	}
	s.sent++
	return nil
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request id used in logs and records.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id attached to ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
