package store

import (
	"context"
	"time"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/ranking"
)

// Storage backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// ServiceConfig selects and configures the storage backend.
type ServiceConfig struct {
	// Type is one of memory, file or redis.
	Type string

	// Path is the base directory for the file backend.
	Path string

	// RedisURL is the connection URL for the redis backend.
	RedisURL string

	// Prefix namespaces redis keys.
	Prefix string
}

// OpenStorage creates the backend named by cfg.Type.
func OpenStorage(cfg ServiceConfig) (Storage, error) {
	switch cfg.Type {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendFile:
		if cfg.Path == "" {
			return nil, apperrors.ValidationError("file storage requires a path")
		}
		return NewFileStorage(cfg.Path), nil
	case BackendRedis:
		return NewRedisStorage(cfg.RedisURL, cfg.Prefix)
	default:
		return nil, apperrors.ValidationErrorf("unknown storage type %q", cfg.Type)
	}
}

// Service converts between stored documents and runs or qrels.
type Service struct {
	storage Storage
	log     *logger.Logger
}

// NewService creates a new store service.
func NewService(storage Storage, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{storage: storage, log: log}
}

// Put validates and saves doc.
func (s *Service) Put(ctx context.Context, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.storage.Save(ctx, doc); err != nil {
		return err
	}
	s.log.WithContext(ctx).WithDocument(string(doc.Kind), doc.Name).Debug("Document saved", "queries", len(doc.Data))
	return nil
}

// Get loads a document.
func (s *Service) Get(ctx context.Context, kind Kind, name string) (*Document, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return s.storage.Load(ctx, kind, name)
}

// List returns summaries of every document of a kind.
func (s *Service) List(ctx context.Context, kind Kind) ([]Summary, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	names, err := s.storage.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		doc, err := s.storage.Load(ctx, kind, name)
		if apperrors.IsNotFound(err) {
			// Deleted between List and Load.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Summarize())
	}
	return out, nil
}

// Delete removes a document, returning not found if it does not exist.
func (s *Service) Delete(ctx context.Context, kind Kind, name string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	ok, err := s.storage.Exists(ctx, kind, name)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(kind, name)
	}
	if err := s.storage.Delete(ctx, kind, name); err != nil {
		return err
	}
	s.log.WithContext(ctx).WithDocument(string(kind), name).Debug("Document deleted")
	return nil
}

// SaveRun stores run under name.
func (s *Service) SaveRun(ctx context.Context, name string, run *ranking.Run) error {
	return s.Put(ctx, NewRunDocument(name, run))
}

// SaveQrels stores qrels under name.
func (s *Service) SaveQrels(ctx context.Context, name string, qrels *ranking.Qrels) error {
	return s.Put(ctx, NewQrelsDocument(name, qrels))
}

// GetRun loads the run stored under name.
func (s *Service) GetRun(ctx context.Context, name string) (*ranking.Run, error) {
	doc, err := s.Get(ctx, KindRun, name)
	if err != nil {
		return nil, err
	}
	return doc.Run()
}

// GetQrels loads the judgments stored under name.
func (s *Service) GetQrels(ctx context.Context, name string) (*ranking.Qrels, error) {
	doc, err := s.Get(ctx, KindQrels, name)
	if err != nil {
		return nil, err
	}
	return doc.Qrels()
}

// Close closes the storage backend.
func (s *Service) Close() error {
	return s.storage.Close()
}
