// Package store persists a controller's plugin list. The controller never
// calls a store itself: AutoSave listens for controller changes and saves a
// snapshot, and Restore/Sync rebuild plugins from a saved document.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dnaconverter/pkg/plugin"

	"gopkg.in/yaml.v3"
)

// Record is one persisted plugin.
type Record struct {
	ID       string           `yaml:"id" json:"id"`
	Kind     string           `yaml:"kind" json:"kind"`
	Name     string           `yaml:"name" json:"name"`
	Pass     plugin.ApplyPass `yaml:"pass" json:"pass"`
	Settings *yaml.Node       `yaml:"settings,omitempty" json:"-"`
}

// Document is the persisted form of one controller.
type Document struct {
	Controller string   `yaml:"controller" json:"controller"`
	Plugins    []Record `yaml:"plugins" json:"plugins"`
}

// Store loads and saves documents.
type Store interface {
	// Load returns the saved document. A store with nothing saved returns
	// an empty document, not an error.
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// FileStore keeps the document in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store reads and writes.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return &doc, nil
}

// Save writes the document to a temporary file and renames it over the
// target, so readers never see a partial file.
func (s *FileStore) Save(ctx context.Context, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// MemoryStore keeps the document in memory. Useful for testing.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc Document
	if len(s.data) == 0 {
		return &doc, nil
	}
	if err := yaml.Unmarshal(s.data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

func (s *MemoryStore) Save(ctx context.Context, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error { return nil }

// ErrSkippedRecord marks a saved plugin that Restore or Sync could not
// rebuild. Errors wrapping only this are not fatal: the other records were
// still applied.
var ErrSkippedRecord = errors.New("skipped saved plugin")

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
