// Package registry provides a concurrency-safe named collection.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrEmptyName = errors.New("name cannot be empty")
	ErrExists    = errors.New("already registered")
)

type Registry[T any] interface {
	Register(name string, item T) error
	Get(name string) (T, bool)
	List() []T
	Replace(items map[string]T)
}

// BaseRegistry keeps insertion-independent, name-sorted listings so callers
// see a stable order.
type BaseRegistry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewBaseRegistry[T any]() *BaseRegistry[T] {
	return &BaseRegistry[T]{items: make(map[string]T)}
}

// Register adds item and fails if name is taken.
func (r *BaseRegistry[T]) Register(name string, item T) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%q %w", name, ErrExists)
	}
	r.items[name] = item
	return nil
}

func (r *BaseRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	return item, exists
}

// List returns items ordered by name.
func (r *BaseRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]T, 0, len(names))
	for _, name := range names {
		items = append(items, r.items[name])
	}
	return items
}

// Replace swaps the whole content atomically.
func (r *BaseRegistry[T]) Replace(items map[string]T) {
	next := make(map[string]T, len(items))
	for name, item := range items {
		if name != "" {
			next[name] = item
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = next
}

var _ Registry[int] = (*BaseRegistry[int])(nil)
