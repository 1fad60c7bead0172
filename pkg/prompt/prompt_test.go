package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		values Values
		want   string
	}{
		{
			name:   "query",
			tmpl:   "Question: {query_str}",
			values: Values{PlaceholderQuery: "why?"},
			want:   "Question: why?",
		},
		{
			name:   "no placeholder returns template unchanged",
			tmpl:   "Summarize the following text.",
			values: Values{PlaceholderQuery: "ignored"},
			want:   "Summarize the following text.",
		},
		{
			name:   "unknown placeholder kept",
			tmpl:   "{query_str} in {language}",
			values: Values{PlaceholderQuery: "hello"},
			want:   "hello in {language}",
		},
		{
			name:   "substituted value not rescanned",
			tmpl:   "{query_str} / {tool_name}",
			values: Values{PlaceholderQuery: "{tool_name}", PlaceholderToolName: "calculator"},
			want:   "{tool_name} / calculator",
		},
		{
			name:   "repeated placeholder",
			tmpl:   "{query_str}? {query_str}!",
			values: Values{PlaceholderQuery: "go"},
			want:   "go? go!",
		},
		{
			name:   "json braces survive",
			tmpl:   `{"a": 1} {query_str}`,
			values: Values{PlaceholderQuery: "x"},
			want:   `{"a": 1} x`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.tmpl, tt.values))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	tool := &ToolContext{
		Name:             "calculator",
		Description:      "Adds numbers.",
		Arguments:        "valueA (integer, required)",
		ExampleArguments: `{"valueA": 2}`,
		AssignedTools:    []string{"calculator", "clock"},
	}

	t.Run("empty template is identity", func(t *testing.T) {
		got, err := BuildPrompt("", "Hi", nil, false)
		require.NoError(t, err)
		assert.Equal(t, "Hi", got)
	})

	t.Run("empty template required", func(t *testing.T) {
		_, err := BuildPrompt("  ", "Hi", tool, true)
		assert.ErrorIs(t, err, ErrTemplateRequired)
	})

	t.Run("tool placeholders", func(t *testing.T) {
		got, err := BuildPrompt("{tool_name}: {tool_description} {tool_arguments} {tool_example_arguments} [{assigned_tools}] {query_str}", "add 2", tool, true)
		require.NoError(t, err)
		assert.Equal(t, `calculator: Adds numbers. valueA (integer, required) {"valueA": 2} [calculator, clock] add 2`, got)
	})

	t.Run("tool placeholders without tool stay literal", func(t *testing.T) {
		got, err := BuildPrompt("{tool_name} {query_str}", "q", nil, false)
		require.NoError(t, err)
		assert.Equal(t, "{tool_name} q", got)
	})
}

func TestBuildSystemMessage(t *testing.T) {
	assert.Equal(t, "", BuildSystemMessage("", "q", nil))
	assert.Equal(t, "Use calculator for: q",
		BuildSystemMessage("Use {tool_name} for: {query_str}", "q", &ToolContext{Name: "calculator"}))
}

func TestFormatCompletion(t *testing.T) {
	t.Run("no format joins system and prompt", func(t *testing.T) {
		assert.Equal(t, "Be brief. Hi", FormatCompletion("  Hi ", " Be brief. ", ""))
	})

	t.Run("empty system uses default", func(t *testing.T) {
		got := FormatCompletion("Hi", "", "")
		assert.Equal(t, DefaultSystemMessage[:len(DefaultSystemMessage)-1]+" Hi", got)
	})

	t.Run("message format", func(t *testing.T) {
		got := FormatCompletion("Hi", "Sys", "<s>[INST] {system_message} {prompt} [/INST]")
		assert.Equal(t, "<s>[INST] Sys Hi [/INST]", got)
	})
}

func TestFormatChat(t *testing.T) {
	f := ChatFormat{BOS: "<s>", EOS: "</s>", BInst: "[INST]", EInst: "[/INST]", BSys: "<<SYS>>", ESys: "<</SYS>>"}
	messages := []Message{
		{Role: RoleSystem, Content: "Be kind."},
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
		{Role: RoleUser, Content: "Bye"},
	}

	got := FormatChat(messages, "ignored", f)
	assert.Equal(t, "<s> [INST] <<SYS>> Be kind. <</SYS>> Hi [/INST] Hello </s><s> [INST] Bye [/INST]", got)
}

func TestRenderRAG(t *testing.T) {
	got := RenderRAG("", "ctx", "q")
	assert.Contains(t, got, "---------------------\nctx\n---------------------")
	assert.Contains(t, got, "please answer the question: q")

	assert.Equal(t, "C=ctx Q=q", RenderRAG("C={context_str} Q={query_str}", "ctx", "q"))
}

func TestRenderRefine(t *testing.T) {
	got := RenderRefine("q", "old", "more")
	assert.Contains(t, got, "The original question is as follows: q\n")
	assert.Contains(t, got, "existing answer: old\n")
	assert.Contains(t, got, "------------\nmore\n------------")
}

func TestDefaultAgentTemplate(t *testing.T) {
	got, err := BuildPrompt(DefaultAgentTemplate, "add 2 and 6", &ToolContext{
		Name:             "calculator",
		Description:      "Performs arithmetic.",
		ExampleArguments: `{"valueA": 2, "valueB": 6, "operation": "add"}`,
	}, true)
	require.NoError(t, err)

	assert.Contains(t, got, "function defined below: add 2 and 6")
	assert.Contains(t, got, "for the 'calculator' function")
	assert.Contains(t, got, "```json\n{\"valueA\": 2, \"valueB\": 6, \"operation\": \"add\"}\n```")
}
