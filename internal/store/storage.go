package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Storage is the interface for document persistence.
type Storage interface {
	// Save creates or replaces a document.
	Save(ctx context.Context, doc *Document) error

	// Load loads a document by kind and name.
	Load(ctx context.Context, kind Kind, name string) (*Document, error)

	// List returns every document name of a kind, sorted.
	List(ctx context.Context, kind Kind) ([]string, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, kind Kind, name string) error

	// Exists checks if a document exists.
	Exists(ctx context.Context, kind Kind, name string) (bool, error)

	// Close releases backend resources.
	Close() error
}

func notFound(kind Kind, name string) error {
	return apperrors.NotFoundError(fmt.Sprintf("%s %q", kind, name))
}

// MemoryStorage keeps documents in memory.
type MemoryStorage struct {
	docs map[Kind]map[string]*Document
	mu   sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		docs: map[Kind]map[string]*Document{
			KindRun:   {},
			KindQrels: {},
		},
	}
}

func (m *MemoryStorage) Save(_ context.Context, doc *Document) error {
	if err := doc.Kind.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[doc.Kind][doc.Name] = doc.clone()
	return nil
}

func (m *MemoryStorage) Load(_ context.Context, kind Kind, name string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[kind][name]
	if !ok {
		return nil, notFound(kind, name)
	}
	return doc.clone(), nil
}

func (m *MemoryStorage) List(_ context.Context, kind Kind) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.docs[kind]))
	for name := range m.docs[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) Delete(_ context.Context, kind Kind, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs[kind], name)
	return nil
}

func (m *MemoryStorage) Exists(_ context.Context, kind Kind, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.docs[kind][name]
	return ok, nil
}

func (m *MemoryStorage) Close() error { return nil }

// FileStorage stores each document as a JSON file under basePath/<kind>/.
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based storage.
func NewFileStorage(basePath string) *FileStorage {
	return &FileStorage{
		basePath: basePath,
	}
}

func (f *FileStorage) dir(kind Kind) string {
	return filepath.Join(f.basePath, string(kind))
}

func (f *FileStorage) path(kind Kind, name string) string {
	return filepath.Join(f.dir(kind), name+".json")
}

func (f *FileStorage) Save(_ context.Context, doc *Document) error {
	if err := doc.Kind.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir(doc.Kind), 0755); err != nil {
		return apperrors.StorageError("failed to create storage directory", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.InternalError("failed to marshal document", err)
	}

	// Write then rename so readers never see a partial file.
	path := f.path(doc.Kind, doc.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.StorageError("failed to write document file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.StorageError("failed to replace document file", err)
	}

	return nil
}

func (f *FileStorage) Load(_ context.Context, kind Kind, name string) (*Document, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path(kind, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(kind, name)
		}
		return nil, apperrors.StorageError("failed to read document file", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.StorageError("failed to unmarshal document", err)
	}

	return &doc, nil
}

func (f *FileStorage) List(_ context.Context, kind Kind) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.dir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, apperrors.StorageError("failed to read storage directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStorage) Delete(_ context.Context, kind Kind, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(kind, name)); err != nil && !os.IsNotExist(err) {
		return apperrors.StorageError("failed to delete document file", err)
	}

	return nil
}

func (f *FileStorage) Exists(_ context.Context, kind Kind, name string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err := os.Stat(f.path(kind, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.StorageError("failed to stat document file", err)
}

func (f *FileStorage) Close() error { return nil }
