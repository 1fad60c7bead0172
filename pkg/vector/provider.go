// Package vector stores embedded document chunks and answers similarity
// queries over them.
package vector

import (
	"context"
	"errors"
	"fmt"
)

// ErrCollectionNotFound is returned when querying a collection that does
// not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// Document is one chunk with its precomputed embedding.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Result is a similarity hit.
type Result struct {
	ID       string
	Content  string
	Score    float32
	Vector   []float32
	Metadata map[string]any
}

// CollectionInfo summarizes a collection.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Provider is a vector store. Embedding happens outside the provider;
// vectors arrive precomputed.
type Provider interface {
	Name() string
	Upsert(ctx context.Context, collection string, docs []Document) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	DeleteCollection(ctx context.Context, collection string) error
	Close() error
}

func collectionNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
}
