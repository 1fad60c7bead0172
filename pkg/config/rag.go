package config

import "fmt"

// RAGConfig configures retrieval-augmented generation.
//
// Example:
//
//	rag:
//	  vector:
//	    type: chromem
//	    chromem:
//	      persist_path: .textserver/vectors
//	  embedder:
//	    model: nomic-embed-text
//	  similarity_top_k: 3
type RAGConfig struct {
	Vector   VectorConfig   `yaml:"vector,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`

	// SimilarityTopK is the default number of chunks retrieved per query.
	SimilarityTopK int `yaml:"similarity_top_k,omitempty"`

	// ResponseMode is the default synthesis mode: compact, refine or no_text.
	ResponseMode string `yaml:"response_mode,omitempty"`

	// ChunkSize caps uploaded document chunks, in characters. Longer
	// documents are split on line boundaries.
	ChunkSize    int `yaml:"chunk_size,omitempty"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`
}

// VectorConfig selects the vector store backend.
type VectorConfig struct {
	// Type is "chromem" (embedded, default) or "qdrant".
	Type    string        `yaml:"type,omitempty"`
	Chromem ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  QdrantConfig  `yaml:"qdrant,omitempty"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// PersistPath enables file persistence. Empty keeps vectors in memory.
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
}

// QdrantConfig configures an external Qdrant server (gRPC).
type QdrantConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

// EmbedderConfig configures the query embedder.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

const (
	VectorTypeChromem = "chromem"
	VectorTypeQdrant  = "qdrant"

	ResponseModeCompact = "compact"
	ResponseModeRefine  = "refine"
	ResponseModeNoText  = "no_text"
)

func (c *RAGConfig) SetDefaults() {
	if c.Vector.Type == "" {
		c.Vector.Type = VectorTypeChromem
	}
	if c.Vector.Type == VectorTypeQdrant {
		if c.Vector.Qdrant.Host == "" {
			c.Vector.Qdrant.Host = "localhost"
		}
		if c.Vector.Qdrant.Port == 0 {
			c.Vector.Qdrant.Port = 6334
		}
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "ollama"
	}
	if c.Embedder.Model == "" {
		c.Embedder.Model = "nomic-embed-text"
	}
	if c.Embedder.BaseURL == "" {
		c.Embedder.BaseURL = DefaultOllamaURL
	}
	if c.SimilarityTopK == 0 {
		c.SimilarityTopK = 3
	}
	if c.ResponseMode == "" {
		c.ResponseMode = ResponseModeCompact
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
}

func (c *RAGConfig) Validate() error {
	switch c.Vector.Type {
	case VectorTypeChromem, VectorTypeQdrant:
	default:
		return fmt.Errorf("invalid vector type %q (valid: chromem, qdrant)", c.Vector.Type)
	}
	if c.Embedder.Provider != "ollama" {
		return fmt.Errorf("invalid embedder provider %q (valid: ollama)", c.Embedder.Provider)
	}
	if c.SimilarityTopK < 0 {
		return fmt.Errorf("similarity_top_k must be non-negative")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be in [0, chunk_size)", c.ChunkOverlap)
	}
	switch c.ResponseMode {
	case ResponseModeCompact, ResponseModeRefine, ResponseModeNoText:
	default:
		return fmt.Errorf("invalid response_mode %q (valid: compact, refine, no_text)", c.ResponseMode)
	}
	return nil
}
