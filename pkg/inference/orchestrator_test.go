package inference

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
)

type fakeModel struct {
	window    int
	reply     string
	tokens    []string
	streamErr error
	genErr    error

	mu       sync.Mutex
	requests []GenerateRequest
}

func (m *fakeModel) ID() string         { return "fake" }
func (m *fakeModel) ContextWindow() int { return m.window }

func (m *fakeModel) Generate(_ context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.reply, m.genErr
}

func (m *fakeModel) Stream(_ context.Context, req GenerateRequest) (<-chan StreamChunk, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	ch := make(chan StreamChunk, len(m.tokens))
	for _, tok := range m.tokens {
		ch <- StreamChunk{Text: tok}
	}
	close(ch)
	return ch, nil
}

func (m *fakeModel) last() GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type memoryRecorder struct {
	records []Record
}

func (r *memoryRecorder) Record(_ context.Context, rec Record) error {
	r.records = append(r.records, rec)
	return nil
}

type fakeRetriever struct {
	got RetrievalRequest
	res *RetrievalResult
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ Model, req RetrievalRequest) (*RetrievalResult, error) {
	f.got = req
	return f.res, nil
}

func newToolRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	prebuilt, err := tools.NewPrebuiltSource([]string{tools.CalculatorName})
	require.NoError(t, err)
	return tools.NewRegistry([]tools.Source{prebuilt})
}

func TestOrchestrator_InstructBuffered(t *testing.T) {
	model := &fakeModel{reply: "Hello"}
	o := New()

	req := NewRequest()
	req.Prompt = "Say hello"
	req.Stream = false

	env, started := o.Respond(context.Background(), model, req, nil)
	assert.False(t, started)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "message": "AI generated response.", "data": {"text": "Hello"}}`, string(data))

	sent := model.last()
	assert.Equal(t, "Say hello", sent.Prompt)
	assert.Equal(t, 900, sent.Options.MaxTokens)
	assert.Equal(t, DefaultContextWindow, sent.Options.NCtx)
	assert.False(t, sent.Options.Stream)
}

func TestOrchestrator_InstructStreaming(t *testing.T) {
	model := &fakeModel{tokens: []string{"Hel", "lo"}, window: 4096}
	rec := &memoryRecorder{}
	o := New(WithRecorder(rec))
	sink := &collectSink{}

	req := NewRequest()
	req.Prompt = "Say hello"
	req.PromptTemplate = "Instruction: {query_str}"

	res, err := o.Run(context.Background(), model, req, sink)
	require.NoError(t, err)
	assert.True(t, res.Streamed)
	assert.Equal(t, "Hello", res.Response.Text)
	assert.Equal(t, []string{"Hel", "lo"}, sink.data())

	sent := model.last()
	assert.Equal(t, "Instruction: Say hello", sent.Prompt)
	assert.Equal(t, 4096, sent.Options.NCtx)

	require.Len(t, rec.records, 1)
	assert.Equal(t, KindInstruct, rec.records[0].Kind)
	assert.Equal(t, StateDone, rec.records[0].Status)
	assert.NotEmpty(t, rec.records[0].RequestID)
}

func TestOrchestrator_StreamFallsBackWithoutSink(t *testing.T) {
	model := &fakeModel{reply: "buffered"}
	o := New()

	req := NewRequest()
	req.Prompt = "hi"

	res, err := o.Run(context.Background(), model, req, nil)
	require.NoError(t, err)
	assert.False(t, res.Streamed)
	assert.Equal(t, "buffered", res.Response.Text)
	assert.False(t, model.last().Options.Stream)
}

func TestOrchestrator_Chat(t *testing.T) {
	model := &fakeModel{reply: "Paris"}
	o := New()

	req := NewRequest()
	req.Mode = ModeChat
	req.Stream = false
	req.SystemMessage = "Answer briefly."
	req.Messages = []prompt.Message{
		{Role: prompt.RoleUser, Content: "Hi"},
		{Role: prompt.RoleAssistant, Content: "Hello!"},
	}
	req.Prompt = "Capital of France?"

	res, err := o.Run(context.Background(), model, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris", res.Response.Text)

	sent := model.last()
	require.Len(t, sent.Messages, 4)
	assert.Equal(t, prompt.Message{Role: prompt.RoleSystem, Content: "Answer briefly."}, sent.Messages[0])
	assert.Equal(t, prompt.Message{Role: prompt.RoleUser, Content: "Capital of France?"}, sent.Messages[3])
	assert.Equal(t, 150, sent.Options.MaxTokens)
}

func TestOrchestrator_ChatKeepsOversizedPrompt(t *testing.T) {
	model := &fakeModel{window: 512, reply: "ok"}
	o := New()

	long := strings.Repeat("word ", 4000)
	req := NewRequest()
	req.Mode = ModeChat
	req.Stream = false
	req.Messages = []prompt.Message{
		{Role: prompt.RoleUser, Content: "earlier"},
		{Role: prompt.RoleAssistant, Content: "reply"},
	}
	req.Prompt = long

	res, err := o.Run(context.Background(), model, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response.Text)

	sent := model.last()
	require.NotEmpty(t, sent.Messages)
	final := sent.Messages[len(sent.Messages)-1]
	assert.Equal(t, prompt.RoleUser, final.Role)
	assert.Equal(t, long, final.Content)
	for _, m := range sent.Messages {
		assert.NotEqual(t, "earlier", m.Content)
	}
}

func TestOrchestrator_RAG(t *testing.T) {
	model := &fakeModel{}
	retriever := &fakeRetriever{res: &RetrievalResult{
		Text:    "42",
		Sources: []Source{{ID: "doc-1", Content: "the answer is 42", Score: 0.9}},
	}}
	o := New(WithRetriever(retriever))

	req := NewRequest()
	req.RetrievalType = RetrievalAugmented
	req.CollectionNames = []string{"facts"}
	req.Prompt = "What is the answer?"
	req.SimilarityTopK = 2
	req.Stream = false

	res, err := o.Run(context.Background(), model, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Response.Text)
	require.Len(t, res.Response.Sources, 1)

	assert.Equal(t, "facts", retriever.got.Collection)
	assert.Equal(t, 2, retriever.got.TopK)
	assert.Zero(t, retriever.got.Options.NCtx)
}

func TestOrchestrator_RAGRequiresRetriever(t *testing.T) {
	req := NewRequest()
	req.RetrievalType = RetrievalAugmented
	req.CollectionNames = []string{"facts"}

	_, err := New().Run(context.Background(), &fakeModel{}, req, nil)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func agentRequest() Request {
	req := NewRequest()
	req.RetrievalType = RetrievalAgent
	req.Tools = []string{tools.CalculatorName}
	req.CollectionNames = []string{"ignored"}
	req.Prompt = "What is 2 times 6?"
	req.PromptTemplate = prompt.DefaultAgentTemplate
	return req
}

func TestOrchestrator_Agent(t *testing.T) {
	model := &fakeModel{reply: "```json\n{\"valueA\": 2, \"valueB\": 6, \"operation\": \"multiply\", \"comment\": \"x\"}\n```"}
	o := New(WithTools(newToolRegistry(t)))
	sink := &collectSink{}

	res, err := o.Run(context.Background(), model, agentRequest(), sink)
	require.NoError(t, err)
	assert.Equal(t, "12", res.Response.Text)
	assert.Equal(t, map[string]any{"result": 12}, res.Response.Raw)

	// Generation is buffered; the caller still receives one event.
	assert.Equal(t, []string{"12"}, sink.data())

	sent := model.last()
	assert.False(t, sent.Options.Stream)
	assert.Zero(t, sent.Options.NCtx)
	assert.Contains(t, sent.Prompt, "What is 2 times 6?")
	assert.Contains(t, sent.Prompt, "valueA")
}

func TestOrchestrator_AgentErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		edit  func(*Request)
		want  ErrorKind
	}{
		{"template required", "{}", func(r *Request) { r.PromptTemplate = "" }, KindConfigurationError},
		{"unknown tool", "{}", func(r *Request) { r.Tools = []string{"teleport"} }, KindToolNotFoundError},
		{"no structured output", "I would rather not.", nil, KindNoStructuredOutput},
		{"malformed output", `{"valueA": two}`, nil, KindMalformedOutput},
		{"tool failure", `{"valueA": 1, "valueB": 0, "operation": "divide"}`, nil, KindToolExecutionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := agentRequest()
			req.Stream = false
			if tt.edit != nil {
				tt.edit(&req)
			}
			o := New(WithTools(newToolRegistry(t)))

			env, started := o.Respond(context.Background(), &fakeModel{reply: tt.reply}, req, nil)
			assert.False(t, started)
			assert.False(t, env.Success)
			assert.Nil(t, env.Data)
			assert.NotEmpty(t, env.Message)

			_, err := o.Run(context.Background(), &fakeModel{reply: tt.reply}, req, nil)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestOrchestrator_NoModel(t *testing.T) {
	rec := &memoryRecorder{}
	_, err := New(WithRecorder(rec)).Run(context.Background(), nil, NewRequest(), nil)
	assert.ErrorIs(t, err, ErrPrecondition)

	require.Len(t, rec.records, 1)
	assert.Equal(t, StateFailed, rec.records[0].Status)
}

func TestOrchestrator_StreamErrorAfterStart(t *testing.T) {
	model := &streamingFailModel{fakeModel: fakeModel{}}
	sink := &collectSink{}

	env, started := New().Respond(context.Background(), model, NewRequest(), sink)
	assert.True(t, started)
	assert.False(t, env.Success)
	assert.Equal(t, []string{"partial"}, sink.data())
}

type streamingFailModel struct {
	fakeModel
}

func (m *streamingFailModel) Stream(context.Context, GenerateRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Text: "partial"}
	ch <- StreamChunk{Err: errors.New("engine crashed")}
	close(ch)
	return ch, nil
}

func TestOrchestrator_GenerationError(t *testing.T) {
	req := NewRequest()
	req.Stream = false
	_, err := New().Run(context.Background(), &fakeModel{genErr: errors.New("out of memory")}, req, nil)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestRequestIDFromContext(t *testing.T) {
	rec := &memoryRecorder{}
	ctx := ContextWithRequestID(context.Background(), "req-1")
	req := NewRequest()
	req.Stream = false

	_, err := New(WithRecorder(rec)).Run(ctx, &fakeModel{reply: "ok"}, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "req-1", rec.records[0].RequestID)
}
