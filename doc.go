// Package textserver is a local inference gateway in front of an Ollama
// engine.
//
// A single HTTP endpoint accepts generation requests and runs them in one
// of four modes:
//
//   - instruct: a single completion
//   - chat: a completion over a message history
//   - rag: retrieval from a vector collection, then synthesis
//   - agent: the model fills a tool's arguments and the tool is invoked
//
// Responses are either buffered into a {success, message, data} envelope
// or streamed token by token as server-sent events.
//
// # Quick start
//
//	go install github.com/dieharders/ai-text-server-sub000/cmd/textserver@latest
//	textserver serve --config textserver.yaml
//
// Without a config file the server listens on 127.0.0.1:8008, talks to
// Ollama on localhost:11434 and keeps vectors in memory.
//
// The packages under pkg/ can be used directly: pkg/inference holds the
// orchestrator, pkg/llms the Ollama engine, pkg/tools the tool registry
// and pkg/rag the retrieval engine.
package textserver
