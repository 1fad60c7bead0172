package vector

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

func sampleDocs() []Document {
	return []Document{
		{ID: "a", Content: "cats purr", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"page": 1}},
		{ID: "b", Content: "dogs bark", Vector: []float32{0, 1, 0}},
		{ID: "c", Content: "cats and dogs", Vector: []float32{0.7, 0.7, 0}},
	}
}

func TestChromemProvider_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)

	require.NoError(t, p.Upsert(ctx, "pets", sampleDocs()))

	hits, err := p.Search(ctx, "pets", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "cats purr", hits[0].Content)
	assert.Equal(t, "1", hits[0].Metadata["page"])
	assert.Equal(t, "c", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestChromemProvider_TopKClampedToCount(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "pets", sampleDocs()))

	hits, err := p.Search(ctx, "pets", []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestChromemProvider_MissingCollection(t *testing.T) {
	p, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "nope", []float32{1}, 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, p.DeleteCollection(context.Background(), "nope"), ErrCollectionNotFound)
}

func TestChromemProvider_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "pets", sampleDocs()))
	require.NoError(t, p.Upsert(ctx, "art", sampleDocs()[:1]))

	cols, err := p.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CollectionInfo{{Name: "art", Count: 1}, {Name: "pets", Count: 3}}, cols)

	require.NoError(t, p.DeleteCollection(ctx, "art"))
	cols, err = p.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
}

func TestChromemProvider_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewChromemProvider(config.ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "pets", sampleDocs()))
	require.NoError(t, p.Close())

	reopened, err := NewChromemProvider(config.ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	hits, err := reopened.Search(ctx, "pets", []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestNewProvider_UnknownType(t *testing.T) {
	_, err := NewProvider(config.VectorConfig{Type: "pinecone"})
	assert.Error(t, err)

	p, err := NewProvider(config.VectorConfig{})
	require.NoError(t, err)
	assert.Equal(t, config.VectorTypeChromem, p.Name())
}

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, pointID(id))

	hashed := pointID("doc-1#3")
	_, err := uuid.Parse(hashed)
	require.NoError(t, err)
	assert.Equal(t, hashed, pointID("doc-1#3"))
	assert.NotEqual(t, hashed, pointID("doc-1#4"))
}

func TestQdrantPayloadRoundTrip(t *testing.T) {
	payload, err := buildPayload(Document{
		ID:       "doc-1",
		Content:  "hello",
		Metadata: map[string]any{"page": 2, "tags": []any{"a", "b"}},
	})
	require.NoError(t, err)

	results := convertQdrantResults([]*qdrant.ScoredPoint{{
		Id:      qdrant.NewID(pointID("doc-1")),
		Score:   0.8,
		Payload: payload,
	}})
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "doc-1", r.ID)
	assert.Equal(t, "hello", r.Content)
	assert.Equal(t, float32(0.8), r.Score)
	assert.Equal(t, int64(2), r.Metadata["page"])
	assert.Equal(t, []any{"a", "b"}, r.Metadata["tags"])
	assert.NotContains(t, r.Metadata, payloadContent)
}
