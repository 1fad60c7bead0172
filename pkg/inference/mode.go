package inference

import (
	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

// Request modes.
const (
	ModeInstruct = "instruct"
	ModeChat     = "chat"
)

// Retrieval types.
const (
	RetrievalBase      = "base"
	RetrievalAugmented = "augmented"
	RetrievalAgent     = "agent"
)

// Kind names an execution strategy.
type Kind string

const (
	KindInstruct Kind = "instruct"
	KindChat     Kind = "chat"
	KindRAG      Kind = "rag"
	KindAgent    Kind = "agent"
)

// ResolveMode classifies a request. Agent wins over RAG, RAG over chat and
// chat over instruct. Mode is only consulted when neither agent nor RAG
// applies.
func ResolveMode(retrievalType string, collectionNames, toolNames []string, mode string) (Kind, error) {
	switch {
	case retrievalType == RetrievalAgent && len(toolNames) > 0:
		return KindAgent, nil
	case retrievalType == RetrievalAugmented && len(collectionNames) > 0:
		return KindRAG, nil
	case mode == "":
		return "", configurationError("resolve", "mode required")
	case mode == ModeChat:
		return KindChat, nil
	case mode == ModeInstruct:
		return KindInstruct, nil
	default:
		return "", configurationError("resolve", "no usable mode/collection combination")
	}
}

// Strategy is one of InstructRequest, ChatRequest, RAGRequest or
// AgentRequest.
type Strategy interface {
	Kind() Kind
	sealed()
}

// Common carries the fields every strategy uses.
type Common struct {
	Prompt         string
	SystemMessage  string
	PromptTemplate string
	MessageFormat  string
	Mode           string
	Options        GenerationOptions
}

type InstructRequest struct {
	Common
}

type ChatRequest struct {
	Common
	Messages []prompt.Message
}

type RAGRequest struct {
	Common
	Collection   string
	Template     string
	TopK         int
	ResponseMode string
}

type AgentRequest struct {
	Common
	Tool          string
	AssignedTools []string
}

func (InstructRequest) Kind() Kind { return KindInstruct }
func (ChatRequest) Kind() Kind     { return KindChat }
func (RAGRequest) Kind() Kind      { return KindRAG }
func (AgentRequest) Kind() Kind    { return KindAgent }

func (InstructRequest) sealed() {}
func (ChatRequest) sealed()     {}
func (RAGRequest) sealed()      {}
func (AgentRequest) sealed()    {}

// NewStrategy resolves req and builds the matching variant.
func NewStrategy(req Request) (Strategy, error) {
	kind, err := ResolveMode(req.RetrievalType, req.CollectionNames, req.Tools, req.Mode)
	if err != nil {
		return nil, err
	}

	common := Common{
		Prompt:         req.Prompt,
		SystemMessage:  req.SystemMessage,
		PromptTemplate: req.PromptTemplate,
		MessageFormat:  req.MessageFormat,
		Mode:           req.Mode,
		Options:        req.GenerationOptions,
	}

	switch kind {
	case KindAgent:
		return AgentRequest{
			Common:        common,
			Tool:          req.Tools[0],
			AssignedTools: append([]string(nil), req.Tools...),
		}, nil
	case KindRAG:
		rag := RAGRequest{
			Common:       common,
			Collection:   req.CollectionNames[0],
			TopK:         req.SimilarityTopK,
			ResponseMode: req.ResponseMode,
		}
		if req.RAGPromptTemplate != nil {
			rag.Template = req.RAGPromptTemplate.Text
		}
		return rag, nil
	case KindChat:
		return ChatRequest{
			Common:   common,
			Messages: append([]prompt.Message(nil), req.Messages...),
		}, nil
	default:
		return InstructRequest{Common: common}, nil
	}
}
