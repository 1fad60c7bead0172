package prompt

import "strings"

// DefaultSystemMessage is used when a request carries no system message.
const DefaultSystemMessage = `You are an AI assistant that answers questions in a friendly manner. Here are some rules you always follow:
- Generate human readable output, avoid creating output with gibberish text.
- Generate only the requested output, don't include any other language before or after the requested output.
- Never say thank you, that you are happy to help, that you are an AI agent, etc. Just answer directly.
`

// DefaultRAGTemplate wraps retrieved context around the question.
const DefaultRAGTemplate = "We have provided context information below.\n" +
	"---------------------\n" +
	"{context_str}\n" +
	"---------------------\n" +
	"Given this information, please answer the question: {query_str}\n"

// DefaultRefineTemplate asks the model to improve an answer with one more chunk.
const DefaultRefineTemplate = "The original question is as follows: {query_str}\n" +
	"We have provided an existing answer: {existing_answer}\n" +
	"We have the opportunity to refine the existing answer (only if needed) with some more context below.\n" +
	"------------\n" +
	"{context_str}\n" +
	"------------\n" +
	"Using both the new context and your own knowledge, update or repeat the existing answer.\n"

// DefaultAgentTemplate asks the model to answer with a JSON argument set for
// the active tool.
const DefaultAgentTemplate = "Consider this prompt when using the function defined below: {query_str}\n\n" +
	"Read the following description for the '{tool_name}' function and shape your response in a way that maps inputs from the given prompt to arguments.\n" +
	"{tool_description}\n" +
	"Arguments:\n{tool_arguments}\n" +
	"Ensure your response is in json format. Here is an example:\n" +
	"```json\n{tool_example_arguments}\n```"

const (
	placeholderContext        = "context_str"
	placeholderExistingAnswer = "existing_answer"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EffectiveSystemMessage returns system, or the default when it is blank.
func EffectiveSystemMessage(system string) string {
	if strings.TrimSpace(system) == "" {
		return DefaultSystemMessage
	}
	return system
}

// FormatCompletion wraps a prompt in a model-specific message format using
// {prompt} and {system_message}. With no format the system message and
// prompt are joined by a space.
func FormatCompletion(prompt, system, messageFormat string) string {
	system = strings.TrimSpace(EffectiveSystemMessage(system))
	prompt = strings.TrimSpace(prompt)

	if messageFormat == "" {
		return system + " " + prompt
	}
	out := strings.ReplaceAll(messageFormat, "{prompt}", prompt)
	return strings.ReplaceAll(out, "{system_message}", system)
}

// ChatFormat holds the special tokens used to flatten a conversation.
type ChatFormat struct {
	BOS   string `json:"BOS"`
	EOS   string `json:"EOS"`
	BInst string `json:"B_INST"`
	EInst string `json:"E_INST"`
	BSys  string `json:"B_SYS"`
	ESys  string `json:"E_SYS"`
}

// FormatChat flattens messages into a single prompt for engines without a
// chat endpoint. A leading system message overrides system.
func FormatChat(messages []Message, system string, f ChatFormat) string {
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		system = messages[0].Content
		messages = messages[1:]
	} else {
		system = EffectiveSystemMessage(system)
	}
	sysStr := f.BSys + " " + strings.TrimSpace(system) + " " + f.ESys

	var b strings.Builder
	first := true
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		if msg.Role != RoleUser {
			continue
		}
		if first {
			b.WriteString(f.BOS + " " + f.BInst + " " + sysStr + " ")
			first = false
		} else {
			b.WriteString(" " + f.EOS)
			b.WriteString(f.BOS + " " + f.BInst + " ")
		}
		b.WriteString(msg.Content + " " + f.EInst)

		if i+1 < len(messages) && messages[i+1].Role == RoleAssistant {
			b.WriteString(" " + messages[i+1].Content)
			i++
		}
	}
	return b.String()
}

// RenderRAG fills a RAG template. An empty template uses DefaultRAGTemplate.
func RenderRAG(tmpl, contextStr, query string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultRAGTemplate
	}
	return Substitute(tmpl, Values{
		PlaceholderQuery:   query,
		placeholderContext: contextStr,
	})
}

// RenderRefine fills DefaultRefineTemplate.
func RenderRefine(query, existingAnswer, contextStr string) string {
	return Substitute(DefaultRefineTemplate, Values{
		PlaceholderQuery:          query,
		placeholderExistingAnswer: existingAnswer,
		placeholderContext:        contextStr,
	})
}
