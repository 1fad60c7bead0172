package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ToolSetting is the persisted form of a user-defined tool.
type ToolSetting struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Path        string           `json:"path"`
	Description string           `json:"description"`
	Args        []ToolSettingArg `json:"args"`
	Example     map[string]any   `json:"example,omitempty"`
}

// ToolSettingArg declares one argument of a user tool.
type ToolSettingArg struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Example     any      `json:"example,omitempty"`
}

// Definition converts the setting. When no explicit example is stored, one
// is assembled from the per-argument examples.
func (s ToolSetting) Definition() Definition {
	def := Definition{
		Name:        s.Name,
		Description: s.Description,
		Path:        s.Path,
		Source:      SourceUser,
		Example:     s.Example,
	}
	var assembled map[string]any
	for _, a := range s.Args {
		def.Arguments = append(def.Arguments, Argument{
			Name:        a.Name,
			Type:        a.Type,
			Description: a.Description,
			Required:    a.Required,
			Enum:        a.Enum,
		})
		if a.Example != nil {
			if assembled == nil {
				assembled = make(map[string]any)
			}
			assembled[a.Name] = a.Example
		}
	}
	if len(def.Example) == 0 {
		def.Example = assembled
	}
	return def
}

// SettingError is a user-facing validation failure.
type SettingError struct {
	Message string
}

func (e *SettingError) Error() string { return e.Message }

var ErrSettingNotFound = errors.New("tool setting not found")

// ToolStore persists ToolSettings as one JSON file per tool in a directory.
type ToolStore struct {
	dir string
	mu  sync.Mutex
}

func NewToolStore(dir string) *ToolStore {
	return &ToolStore{dir: dir}
}

func (s *ToolStore) Dir() string { return s.dir }

// List returns all stored settings ordered by name. A missing directory is
// an empty list.
func (s *ToolStore) List() ([]ToolSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *ToolStore) list() ([]ToolSetting, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tool directory: %w", err)
	}

	var settings []ToolSetting
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		setting, err := readSetting(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			var invalid *InvalidDefinitionError
			if errors.As(err, &invalid) {
				slog.Warn("Skipping unreadable tool setting", "file", entry.Name(), "error", err)
				continue
			}
			return nil, err
		}
		if setting.ID == "" {
			setting.ID = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}
		settings = append(settings, setting)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Name < settings[j].Name })
	return settings, nil
}

// Save creates or updates a setting. A setting without an id is new and
// receives one; its name must not already be taken.
func (s *ToolStore) Save(setting ToolSetting) (ToolSetting, error) {
	setting.Name = strings.TrimSpace(setting.Name)
	setting.Path = strings.TrimSpace(setting.Path)
	if setting.Name == "" {
		return ToolSetting{}, &SettingError{Message: `Please add a "name" value.`}
	}
	if setting.Path == "" {
		return ToolSetting{}, &SettingError{Message: `Please add a "path" value.`}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if setting.ID == "" {
		existing, err := s.list()
		if err != nil {
			return ToolSetting{}, err
		}
		for _, e := range existing {
			if e.Name == setting.Name {
				return ToolSetting{}, &SettingError{Message: fmt.Sprintf("The tool name %q already exists.", setting.Name)}
			}
		}
		setting.ID = uuid.NewString()
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return ToolSetting{}, fmt.Errorf("failed to create tool directory: %w", err)
	}
	data, err := json.MarshalIndent(setting, "", "  ")
	if err != nil {
		return ToolSetting{}, fmt.Errorf("failed to encode tool setting: %w", err)
	}

	path, err := s.pathFor(setting.ID)
	if err != nil {
		return ToolSetting{}, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ToolSetting{}, fmt.Errorf("failed to write tool setting: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ToolSetting{}, fmt.Errorf("failed to write tool setting: %w", err)
	}
	return setting, nil
}

// Delete removes the setting with id.
func (s *ToolStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", id, ErrSettingNotFound)
		}
		return fmt.Errorf("failed to delete tool setting: %w", err)
	}
	return nil
}

func (s *ToolStore) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", &SettingError{Message: fmt.Sprintf("invalid tool id %q", id)}
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func readSetting(path string) (ToolSetting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ToolSetting{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var setting ToolSetting
	if err := json.Unmarshal(data, &setting); err != nil {
		return ToolSetting{}, &InvalidDefinitionError{
			Name:   filepath.Base(path),
			Reason: fmt.Sprintf("malformed JSON: %v", err),
		}
	}
	return setting, nil
}
