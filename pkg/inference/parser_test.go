package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
)

func TestRegexExtractor(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"fenced with language", "Sure:\n```json\n{\"a\": 1}\n```\nDone.", "{\"a\": 1}\n", true},
		{"fenced without language", "```\n{\"a\": 1}```", "{\"a\": 1}", true},
		{"bare braces", `The call is {"a": 1} as requested`, `{"a": 1}`, true},
		{"first fenced block only", "```\n{\"a\": 1}\n```\n```\n{\"b\": 2}\n```", "{\"a\": 1}\n", true},
		{"no structure", "I cannot help with that.", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RegexExtractor{}.ExtractCandidateBlock(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize(t *testing.T) {
	in := `{
  "a": 1, // first
  /* block */ "url": "http://example.com",
  "list": [1, 2,],
}`
	assert.JSONEq(t, `{"a": 1, "url": "http://example.com", "list": [1, 2]}`, Sanitize(in))
}

func TestExtractArguments_FiltersUnknownKeys(t *testing.T) {
	p := NewOutputParser(nil, nil)

	args, err := p.ExtractArguments("```json\n{\"a\": 1, \"b\": \"two\", \"c\": 3}\n```", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "two"}, args)
}

func TestExtractArguments_Errors(t *testing.T) {
	p := NewOutputParser(nil, nil)

	_, err := p.ExtractArguments("no braces anywhere", []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStructuredOutput)
	assert.Equal(t, KindNoStructuredOutput, KindOf(err))

	_, err = p.ExtractArguments(`{"a": nope}`, []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

type recordingInvoker struct {
	args   map[string]any
	result any
	err    error
}

func (r *recordingInvoker) Invoke(_ context.Context, _ tools.Tool, args map[string]any) (any, error) {
	r.args = args
	return r.result, r.err
}

func TestOutputParser_Parse(t *testing.T) {
	inv := &recordingInvoker{result: 12}
	p := NewOutputParser(nil, inv)
	desc := tools.Description{Name: "calculator", AllowedArgumentNames: []string{"valueA", "valueB", "operation"}}

	out, err := p.Parse(context.Background(),
		`{"valueA": 2, "valueB": 6, "operation": "multiply", "note": "ignored"}`, nil, desc)
	require.NoError(t, err)
	assert.NotContains(t, inv.args, "note")
	assert.Equal(t, "12", out.Text)
	assert.Equal(t, map[string]any{"result": 12}, out.Raw)
}

func TestOutputParser_ParseToolFailure(t *testing.T) {
	inv := &recordingInvoker{err: &tools.ExecutionError{Name: "calculator", Err: errors.New("boom")}}
	p := NewOutputParser(nil, inv)

	_, err := p.Parse(context.Background(), `{"a": 1}`, nil, tools.Description{AllowedArgumentNames: []string{"a"}})
	require.Error(t, err)
	assert.Equal(t, KindToolExecutionError, KindOf(err))
	assert.ErrorIs(t, err, ErrToolExecution)
}
