package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dieharders/ai-text-server-sub000/pkg/registry"
)

// UserSource serves tools defined by ToolSettings on disk. Definitions are
// rebuilt as a whole on Reload; each resolved definition is an immutable
// value, so lookups never observe a half-applied reload.
type UserSource struct {
	store   *ToolStore
	factory *HandlerFactory

	tools *registry.BaseRegistry[*UserTool]

	reloadMu sync.Mutex

	mu      sync.RWMutex
	invalid map[string]error
}

func NewUserSource(store *ToolStore, factory *HandlerFactory) *UserSource {
	return &UserSource{
		store:   store,
		factory: factory,
		tools:   registry.NewBaseRegistry[*UserTool](),
		invalid: make(map[string]error),
	}
}

func (s *UserSource) Name() string { return SourceUser }

func (s *UserSource) Lookup(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools.Get(name)
	if !ok {
		return nil, false
	}
	return t, true
}

func (s *UserSource) List() []Tool {
	s.mu.RLock()
	items := s.tools.List()
	s.mu.RUnlock()
	out := make([]Tool, 0, len(items))
	for _, t := range items {
		out = append(out, t)
	}
	return out
}

// LoadError returns the load-time error recorded for name, if any.
func (s *UserSource) LoadError(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invalid[name]
}

// Reload rebuilds the tool set from the store. Invalid definitions are
// recorded and skipped. Tools whose definition is unchanged keep their
// handler; replaced tools are retired.
func (s *UserSource) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	settings, err := s.store.List()
	if err != nil {
		return err
	}

	next := make(map[string]*UserTool, len(settings))
	invalid := make(map[string]error)
	for _, setting := range settings {
		def := setting.Definition()
		if err := def.Validate(); err != nil {
			invalid[def.Name] = err
			slog.Warn("Skipping invalid tool definition", "tool", def.Name, "error", err)
			continue
		}
		if _, dup := next[def.Name]; dup {
			invalid[def.Name] = &InvalidDefinitionError{Name: def.Name, Reason: "defined more than once"}
			slog.Warn("Skipping duplicate tool definition", "tool", def.Name, "id", setting.ID)
			continue
		}
		if prev, ok := s.tools.Get(def.Name); ok && reflect.DeepEqual(prev.def, def) {
			next[def.Name] = prev
			continue
		}
		handler, err := s.factory.Bind(def)
		if err != nil {
			invalid[def.Name] = err
			slog.Warn("Skipping tool with unusable path", "tool", def.Name, "path", def.Path, "error", err)
			continue
		}
		next[def.Name] = newUserTool(def, handler)
	}

	previous := s.tools.List()
	s.mu.Lock()
	s.tools.Replace(next)
	s.invalid = invalid
	s.mu.Unlock()

	for _, t := range previous {
		if next[t.def.Name] != t {
			t.retire()
		}
	}

	slog.Debug("User tools loaded", "dir", s.store.Dir(), "tools", len(next), "invalid", len(invalid))
	return nil
}

// Watch reloads whenever a JSON file in the store directory changes. It
// blocks until ctx is cancelled.
func (s *UserSource) Watch(ctx context.Context) error {
	dir := s.store.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		if err := s.Reload(); err != nil {
			slog.Warn("Failed to reload user tools", "error", err)
		}
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, reload)
			timerMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("Tool directory watcher error", "error", err)
			}
		}
	}
}

// Close releases every bound handler.
func (s *UserSource) Close() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	var errs []error
	for _, t := range s.tools.List() {
		if err := t.handler.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
