// Package shelf binds a data directory and a schema registry together and
// hands out repositories by entity name.
package shelf

import (
	"fmt"
	"os"
	"sync"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/repository"
	"github.com/mesh-intelligence/shelf/internal/store"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Shelf implements types.Shelf. It holds configuration only: every call to
// Repository builds a fresh store and repository for the entity's file, so no
// "current file" state is shared between callers.
type Shelf struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	registry *schema.Registry
	log      logging.Logger
}

// Option configures a Shelf.
type Option func(*Shelf)

// WithLogger sets the logger passed to every repository.
func WithLogger(log logging.Logger) Option {
	return func(s *Shelf) { s.log = log }
}

// WithRegistry replaces the built-in schema registry.
func WithRegistry(r *schema.Registry) Option {
	return func(s *Shelf) { s.registry = r }
}

// New creates a detached shelf. Call Attach with a Config to use it.
func New(opts ...Option) *Shelf {
	s := &Shelf{
		registry: schema.Builtins(),
		log:      logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach applies defaults to config, validates it, creates the data directory
// and loads any schema files from config.SchemaDir over the registry.
// Returns ErrAlreadyAttached if already attached.
func (s *Shelf) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return err
	}
	if config.DataDir == "" {
		config.DataDir = "."
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	if config.SchemaDir != "" {
		loaded, err := s.registry.LoadDir(config.SchemaDir)
		if err != nil {
			return fmt.Errorf("loading schemas: %w", err)
		}
		if len(loaded) > 0 {
			s.log.Debugf("loaded schemas %v from %s", loaded, config.SchemaDir)
		}
	}

	s.config = config
	s.attached = true
	s.log.Debugf("attached %s shelf at %s", config.Backend, config.DataDir)
	return nil
}

// Detach releases the shelf. Detach is idempotent.
func (s *Shelf) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attached = false
	return nil
}

// Repository returns a repository bound to entity's collection file.
// Returns ErrShelfDetached when detached and ErrEntityNotFound for names the
// registry does not know.
func (s *Shelf) Repository(entity string) (types.Repository, error) {
	return s.repository(entity)
}

// Open is Repository returning the concrete type, which also offers Compact
// and Schema.
func (s *Shelf) Open(entity string) (*repository.Repository, error) {
	return s.repository(entity)
}

func (s *Shelf) repository(entity string) (*repository.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrShelfDetached
	}
	sc, ok := s.registry.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrEntityNotFound, entity)
	}
	st, err := store.Open(s.config.Backend, s.config.DataDir, entity, s.config.Indent)
	if err != nil {
		return nil, err
	}
	return repository.New(st, sc,
		repository.WithLocker(store.NewLocker(s.config.LockTimeout)),
		repository.WithLogger(s.log),
	), nil
}

// Entities lists the registered entity names in sorted order.
func (s *Shelf) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Names()
}

// Schema returns the schema registered for entity.
func (s *Shelf) Schema(entity string) (*schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.registry.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrEntityNotFound, entity)
	}
	return sc, nil
}

// Config returns the configuration the shelf was attached with, after
// defaults were applied.
func (s *Shelf) Config() types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

var _ types.Shelf = (*Shelf)(nil)
