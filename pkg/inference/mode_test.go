package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name        string
		retrieval   string
		collections []string
		tools       []string
		mode        string
		want        Kind
		wantErr     string
	}{
		{name: "agent wins over collections", retrieval: RetrievalAgent, collections: []string{"docs"}, tools: []string{"calculator"}, mode: ModeChat, want: KindAgent},
		{name: "agent without tools falls through", retrieval: RetrievalAgent, mode: ModeInstruct, want: KindInstruct},
		{name: "augmented with collection", retrieval: RetrievalAugmented, collections: []string{"docs"}, want: KindRAG},
		{name: "augmented without collection uses mode", retrieval: RetrievalAugmented, mode: ModeChat, want: KindChat},
		{name: "chat", retrieval: RetrievalBase, mode: ModeChat, want: KindChat},
		{name: "instruct", retrieval: RetrievalBase, mode: ModeInstruct, want: KindInstruct},
		{name: "mode missing", retrieval: RetrievalBase, wantErr: "mode required"},
		{name: "unknown mode", retrieval: RetrievalBase, mode: "poetry", wantErr: "no usable mode/collection combination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveMode(tt.retrieval, tt.collections, tt.tools, tt.mode)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfiguration)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewStrategy_Agent(t *testing.T) {
	req := NewRequest()
	req.RetrievalType = RetrievalAgent
	req.Tools = []string{"calculator", "clock"}
	req.CollectionNames = []string{"docs"}

	s, err := NewStrategy(req)
	require.NoError(t, err)

	agent, ok := s.(AgentRequest)
	require.True(t, ok)
	assert.Equal(t, "calculator", agent.Tool)
	assert.Equal(t, []string{"calculator", "clock"}, agent.AssignedTools)
}

func TestNewStrategy_RAGTemplate(t *testing.T) {
	req := NewRequest()
	req.RetrievalType = RetrievalAugmented
	req.CollectionNames = []string{"docs", "ignored"}
	req.RAGPromptTemplate = &RAGTemplate{Text: "ctx {context_str} q {query_str}"}
	req.SimilarityTopK = 5

	s, err := NewStrategy(req)
	require.NoError(t, err)

	rag, ok := s.(RAGRequest)
	require.True(t, ok)
	assert.Equal(t, "docs", rag.Collection)
	assert.Equal(t, "ctx {context_str} q {query_str}", rag.Template)
	assert.Equal(t, 5, rag.TopK)
}

func TestNewRequest_Defaults(t *testing.T) {
	req := NewRequest()
	assert.Equal(t, ModeInstruct, req.Mode)
	assert.Equal(t, RetrievalBase, req.RetrievalType)
	assert.Equal(t, DefaultSeed, req.Seed)
	assert.Equal(t, DefaultContextWindow, req.NCtx)
	assert.True(t, req.Stream)
}
