// Package store implements the flat-file record stores behind a Repository.
// Each store owns exactly one file holding one entity's collection and
// guarantees that a Save either fully replaces the file or leaves it as it was.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/natefinch/atomic"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var entityRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Extension returns the file extension used by backend.
func Extension(backend string) (string, error) {
	switch backend {
	case types.BackendJSON:
		return ".json", nil
	case types.BackendJSONL:
		return ".jsonl", nil
	case types.BackendSQLite:
		return ".db", nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
	}
}

// FilePath returns the collection file for entity under dataDir.
func FilePath(backend, dataDir, entity string) (string, error) {
	if !entityRe.MatchString(entity) {
		return "", fmt.Errorf("invalid entity name %q: must match %s", entity, entityRe)
	}
	ext, err := Extension(backend)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dataDir, entity+ext)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// Open returns the store for entity's collection under dataDir. Nothing is
// touched on disk until the first Load or Save.
func Open(backend, dataDir, entity string, indent int) (types.Store, error) {
	path, err := FilePath(backend, dataDir, entity)
	if err != nil {
		return nil, err
	}
	switch backend {
	case types.BackendJSON:
		return NewJSONStore(path, indent), nil
	case types.BackendJSONL:
		return NewJSONLStore(path), nil
	default:
		return NewSQLiteStore(path), nil
	}
}

// ensureDir creates the directory holding path.
func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return &types.WriteError{Path: path, Op: "mkdir", Err: err}
	}
	return nil
}

// writeAtomic replaces path with data through a temporary file in the same
// directory, so a failure leaves the previous content intact.
func writeAtomic(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return &types.WriteError{Path: path, Op: "write", Err: err}
	}
	// atomic.WriteFile keeps the mode of an existing file; a new one starts 0600.
	if errors.Is(statErr, os.ErrNotExist) {
		if err := os.Chmod(path, filePerm); err != nil {
			return &types.WriteError{Path: path, Op: "chmod", Err: err}
		}
	}
	return nil
}
