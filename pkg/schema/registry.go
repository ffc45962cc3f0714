package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps entity names to their schemas. It is populated at startup and
// read afterwards; it is not safe for concurrent mutation.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Builtins returns a registry holding the built-in entity schemas.
func Builtins() *Registry {
	r := NewRegistry()
	for _, s := range builtinSchemas() {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any schema with the same name.
func (r *Registry) Register(s *Schema) {
	r.schemas[s.Name] = s
}

// Lookup returns the schema for entity.
func (r *Registry) Lookup(entity string) (*Schema, bool) {
	s, ok := r.schemas[entity]
	return s, ok
}

// Names returns the registered entity names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir registers every *.json and *.jsonc schema file in dir, in file name
// order. A missing directory is not an error. It returns the names loaded.
func (r *Registry) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading schema dir %s: %w", dir, err)
	}

	var loaded []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".json" && ext != ".jsonc") {
			continue
		}
		s, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		r.Register(s)
		loaded = append(loaded, s.Name)
	}
	return loaded, nil
}
