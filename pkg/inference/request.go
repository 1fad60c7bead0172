// Package inference turns one generation request into an execution
// strategy (instruct, chat, RAG or agent), runs it against the loaded
// model and shapes the result for the caller.
package inference

import (
	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

const (
	DefaultContextWindow = 2000
	DefaultSeed          = 1337
)

// GenerationOptions is forwarded to the engine. The orchestrator only
// computes MaxTokens and sets or clears NCtx.
type GenerationOptions struct {
	Temperature      float64  `json:"temperature"`
	TopK             int      `json:"top_k"`
	TopP             float64  `json:"top_p"`
	MinP             float64  `json:"min_p"`
	RepeatPenalty    float64  `json:"repeat_penalty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	MirostatTau      float64  `json:"mirostat_tau,omitempty"`
	TfsZ             float64  `json:"tfs_z,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	Seed             int      `json:"seed"`
	MaxTokens        int      `json:"max_tokens"`
	NCtx             int      `json:"n_ctx,omitempty"`
	Stream           bool     `json:"stream"`
	Grammar          string   `json:"grammar,omitempty"`
	Echo             bool     `json:"echo,omitempty"`
}

// RAGTemplate is a named prompt template for retrieval requests.
type RAGTemplate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// Request is one inbound generation request.
type Request struct {
	Prompt            string           `json:"prompt"`
	Messages          []prompt.Message `json:"messages,omitempty"`
	Mode              string           `json:"mode"`
	RetrievalType     string           `json:"retrievalType"`
	CollectionNames   []string         `json:"collectionNames,omitempty"`
	Tools             []string         `json:"tools,omitempty"`
	PromptTemplate    string           `json:"promptTemplate,omitempty"`
	RAGPromptTemplate *RAGTemplate     `json:"ragPromptTemplate,omitempty"`
	SystemMessage     string           `json:"systemMessage,omitempty"`
	MessageFormat     string           `json:"messageFormat,omitempty"`
	Model             string           `json:"model,omitempty"`
	SimilarityTopK    int              `json:"similarity_top_k,omitempty"`
	ResponseMode      string           `json:"response_mode,omitempty"`

	GenerationOptions
}

// NewRequest returns a request carrying the defaults applied to fields the
// caller omits. Decode a JSON body into it to get those defaults.
func NewRequest() Request {
	return Request{
		Mode:          ModeInstruct,
		RetrievalType: RetrievalBase,
		GenerationOptions: GenerationOptions{
			Temperature:   0.0,
			TopK:          40,
			TopP:          0.95,
			MinP:          0.05,
			RepeatPenalty: 1.1,
			Seed:          DefaultSeed,
			NCtx:          DefaultContextWindow,
			Stream:        true,
		},
	}
}
