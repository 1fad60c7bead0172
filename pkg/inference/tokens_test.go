package inference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

func TestCalcMaxTokens(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		window    int
		mode      string
		want      int
	}{
		{"instruct keeps half minus buffer", 0, 2000, ModeInstruct, 900},
		{"chat keeps an eighth minus buffer", 0, 2000, ModeChat, 150},
		{"explicit request wins", 500, 2000, ModeInstruct, 500},
		{"instruct uses the 128 fallback on a tiny window", 0, 100, ModeInstruct, 128},
		{"tiny window chat falls back", 0, 800, ModeChat, 128},
		{"other modes use the chat ratio", 0, 4096, "", 412},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalcMaxTokens(tt.requested, tt.window, tt.mode))
		})
	}
}

func TestEstimateCounter(t *testing.T) {
	c := EstimateCounter{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 2, c.Count("abcdefgh"))
}

func TestFitWithinLimit(t *testing.T) {
	c := EstimateCounter{}
	long := strings.Repeat("x", 400)
	messages := []prompt.Message{
		{Role: prompt.RoleSystem, Content: "be brief"},
		{Role: prompt.RoleUser, Content: long},
		{Role: prompt.RoleAssistant, Content: long},
		{Role: prompt.RoleUser, Content: "latest"},
	}

	t.Run("keeps everything under the limit", func(t *testing.T) {
		assert.Equal(t, messages, FitWithinLimit(c, messages, 10_000))
	})

	t.Run("drops oldest but keeps system", func(t *testing.T) {
		fitted := FitWithinLimit(c, messages, 150)
		assert.Equal(t, prompt.RoleSystem, fitted[0].Role)
		assert.Equal(t, "latest", fitted[len(fitted)-1].Content)
		assert.Less(t, len(fitted), len(messages))
		assert.LessOrEqual(t, CountMessages(c, fitted), 150)
	})

	t.Run("final message survives an oversized turn", func(t *testing.T) {
		history := []prompt.Message{
			{Role: prompt.RoleSystem, Content: "be brief"},
			{Role: prompt.RoleAssistant, Content: "hello"},
			{Role: prompt.RoleUser, Content: long},
		}
		fitted := FitWithinLimit(c, history, 20)
		assert.Equal(t, []prompt.Message{history[0], history[2]}, fitted)
	})

	t.Run("lone oversized message is kept", func(t *testing.T) {
		only := []prompt.Message{{Role: prompt.RoleUser, Content: long}}
		assert.Equal(t, only, FitWithinLimit(c, only, 10))
	})

	t.Run("non-positive limit is a no-op", func(t *testing.T) {
		assert.Equal(t, messages, FitWithinLimit(c, messages, 0))
	})
}
