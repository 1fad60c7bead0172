// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rag answers questions from a vector collection: embed the query,
// fetch the nearest chunks, fill a template and generate.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
	"github.com/dieharders/ai-text-server-sub000/pkg/vector"
)

// EmptyResponse is the answer when retrieval finds nothing.
const EmptyResponse = "Empty Response"

// Engine implements inference.Retriever over a vector store.
type Engine struct {
	store        vector.Provider
	embedder     Embedder
	chunker      *LineChunker
	topK         int
	responseMode string
}

var _ inference.Retriever = (*Engine)(nil)

func NewEngine(store vector.Provider, embedder Embedder, cfg config.RAGConfig) *Engine {
	topK := cfg.SimilarityTopK
	if topK <= 0 {
		topK = 3
	}
	mode := cfg.ResponseMode
	if mode == "" {
		mode = config.ResponseModeCompact
	}
	return &Engine{
		store:        store,
		embedder:     embedder,
		chunker:      NewLineChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		topK:         topK,
		responseMode: mode,
	}
}

func (e *Engine) Retrieve(ctx context.Context, model inference.Model, req inference.RetrievalRequest) (*inference.RetrievalResult, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = e.topK
	}
	mode := req.ResponseMode
	if mode == "" {
		mode = e.responseMode
	}

	vec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, NewSearchError("embedder", "embed", "failed to embed query", req.Query, err)
	}

	hits, err := e.store.Search(ctx, req.Collection, vec, topK)
	if err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return nil, inference.NewError(inference.KindPreconditionError, "retrieve",
				fmt.Sprintf("collection %q does not exist", req.Collection), err)
		}
		return nil, NewSearchError("vector_db", "search", "similarity search failed", req.Query, err)
	}

	sources := toSources(hits)
	for _, s := range sources {
		slog.Debug("Retrieved chunk", "collection", req.Collection, "id", s.ID, "score", s.Score)
	}

	switch {
	case mode == config.ResponseModeNoText:
		return &inference.RetrievalResult{Sources: sources}, nil
	case len(hits) == 0:
		return &inference.RetrievalResult{Text: EmptyResponse, Sources: sources}, nil
	case mode == config.ResponseModeRefine:
		return e.refine(ctx, model, req, hits, sources)
	default:
		return e.compact(ctx, model, req, hits, sources)
	}
}

// compact answers in a single pass with every chunk in the context.
func (e *Engine) compact(ctx context.Context, model inference.Model, req inference.RetrievalRequest, hits []vector.Result, sources []inference.Source) (*inference.RetrievalResult, error) {
	contents := make([]string, len(hits))
	for i, h := range hits {
		contents[i] = h.Content
	}
	text := prompt.RenderRAG(req.Template, strings.Join(contents, "\n\n"), req.Query)
	return e.synthesize(ctx, model, req, text, req.Options.Stream, sources)
}

// refine answers from the first chunk, then revises the answer once per
// remaining chunk. Only the last pass may stream.
func (e *Engine) refine(ctx context.Context, model inference.Model, req inference.RetrievalRequest, hits []vector.Result, sources []inference.Source) (*inference.RetrievalResult, error) {
	text := prompt.RenderRAG(req.Template, hits[0].Content, req.Query)
	if len(hits) == 1 {
		return e.synthesize(ctx, model, req, text, req.Options.Stream, sources)
	}

	answer, err := e.synthesize(ctx, model, req, text, false, sources)
	if err != nil {
		return nil, err
	}
	for i, h := range hits[1:] {
		last := i == len(hits)-2
		text = prompt.RenderRefine(req.Query, answer.Text, h.Content)
		answer, err = e.synthesize(ctx, model, req, text, last && req.Options.Stream, sources)
		if err != nil {
			return nil, err
		}
	}
	return answer, nil
}

func (e *Engine) synthesize(ctx context.Context, model inference.Model, req inference.RetrievalRequest, text string, stream bool, sources []inference.Source) (*inference.RetrievalResult, error) {
	greq := inference.GenerateRequest{
		Prompt:        text,
		System:        req.System,
		MessageFormat: req.MessageFormat,
		Options:       req.Options,
	}
	greq.Options.Stream = stream

	if stream {
		tokens, err := model.Stream(ctx, greq)
		if err != nil {
			return nil, NewSearchError("synthesizer", "stream", "generation failed", req.Query, err)
		}
		return &inference.RetrievalResult{Stream: tokens, Sources: sources}, nil
	}

	out, err := model.Generate(ctx, greq)
	if err != nil {
		return nil, NewSearchError("synthesizer", "generate", "generation failed", req.Query, err)
	}
	return &inference.RetrievalResult{Text: out, Sources: sources}, nil
}

func toSources(hits []vector.Result) []inference.Source {
	sources := make([]inference.Source, 0, len(hits))
	for _, h := range hits {
		var meta map[string]string
		if len(h.Metadata) > 0 {
			meta = make(map[string]string, len(h.Metadata))
			for k, v := range h.Metadata {
				meta[k] = fmt.Sprint(v)
			}
		}
		sources = append(sources, inference.Source{
			ID:       h.ID,
			Content:  h.Content,
			Score:    h.Score,
			Metadata: meta,
		})
	}
	return sources
}

// IngestDocument is an uploaded text with optional metadata.
type IngestDocument struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ingest chunks, embeds and upserts documents. It returns the number of
// chunks written.
func (e *Engine) Ingest(ctx context.Context, collection string, docs []IngestDocument) (int, error) {
	if collection == "" {
		return 0, errors.New("collection name is required")
	}

	var batch []vector.Document
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		docID := d.ID
		if docID == "" {
			docID = uuid.NewString()
		}
		for _, c := range e.chunker.Chunk(d.Text) {
			vec, err := e.embedder.Embed(ctx, c.Content)
			if err != nil {
				return 0, NewSearchError("embedder", "embed", "failed to embed document", "", err)
			}
			meta := make(map[string]any, len(d.Metadata)+3)
			for k, v := range d.Metadata {
				meta[k] = v
			}
			meta["source_id"] = docID
			meta["chunk_index"] = c.Index
			meta["chunk_total"] = c.Total

			id := docID
			if c.Total > 1 {
				id = fmt.Sprintf("%s#%d", docID, c.Index)
			}
			batch = append(batch, vector.Document{ID: id, Content: c.Content, Vector: vec, Metadata: meta})
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := e.store.Upsert(ctx, collection, batch); err != nil {
		return 0, NewSearchError("vector_db", "upsert", "failed to store documents", "", err)
	}
	slog.Info("Ingested documents", "collection", collection, "documents", len(docs), "chunks", len(batch))
	return len(batch), nil
}

func (e *Engine) Collections(ctx context.Context) ([]vector.CollectionInfo, error) {
	return e.store.ListCollections(ctx)
}

func (e *Engine) DeleteCollection(ctx context.Context, name string) error {
	return e.store.DeleteCollection(ctx, name)
}
