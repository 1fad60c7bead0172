package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"

	"github.com/philippgille/chromem-go"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

// ChromemProvider stores vectors in process with chromem-go, optionally
// persisted to a directory. It needs no external service.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string
}

// NewChromemProvider opens the store. With a persist path every write is
// flushed to that directory and existing collections are reloaded.
func NewChromemProvider(cfg config.ChromemConfig) (*ChromemProvider, error) {
	if cfg.PersistPath == "" {
		slog.Info("Created in-memory vector database (no persistence)")
		return &ChromemProvider{db: chromem.NewDB()}, nil
	}

	if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persist directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database at %s: %w", cfg.PersistPath, err)
	}
	slog.Info("Opened vector database", "path", cfg.PersistPath, "collections", len(db.ListCollections()))
	return &ChromemProvider{db: db, persistPath: cfg.PersistPath}, nil
}

func (p *ChromemProvider) Name() string { return config.VectorTypeChromem }

// precomputed is installed on every collection. Documents and queries
// always carry vectors, so it is never expected to run.
func precomputed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection string, docs []Document) error {
	col, err := p.db.GetOrCreateCollection(collection, nil, precomputed)
	if err != nil {
		return fmt.Errorf("failed to get/create collection %q: %w", collection, err)
	}

	batch := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		meta := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		batch = append(batch, chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  meta,
			Embedding: d.Vector,
		})
	}
	if err := col.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	col := p.db.GetCollection(collection, precomputed)
	if col == nil {
		return nil, collectionNotFound(collection)
	}

	// chromem rejects a result count above the collection size.
	n := topK
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	hits, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		meta := make(map[string]any, len(h.Metadata))
		for k, v := range h.Metadata {
			meta[k] = v
		}
		out = append(out, Result{
			ID:       h.ID,
			Content:  h.Content,
			Score:    h.Similarity,
			Vector:   h.Embedding,
			Metadata: meta,
		})
	}
	return out, nil
}

func (p *ChromemProvider) ListCollections(context.Context) ([]CollectionInfo, error) {
	cols := p.db.ListCollections()
	out := make([]CollectionInfo, 0, len(cols))
	for name, col := range cols {
		out = append(out, CollectionInfo{Name: name, Count: col.Count()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *ChromemProvider) DeleteCollection(_ context.Context, collection string) error {
	if p.db.GetCollection(collection, precomputed) == nil {
		return collectionNotFound(collection)
	}
	if err := p.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Close is a no-op; persistent databases write through on every change.
func (p *ChromemProvider) Close() error { return nil }

var _ Provider = (*ChromemProvider)(nil)
