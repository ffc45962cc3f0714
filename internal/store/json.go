package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// JSONStore keeps a collection as a single JSON array of objects.
type JSONStore struct {
	path   string
	indent int
}

// NewJSONStore returns a store for the array file at path. indent is the
// number of spaces used when writing; zero writes compact JSON.
func NewJSONStore(path string, indent int) *JSONStore {
	return &JSONStore{path: path, indent: indent}
}

// Path returns the collection file.
func (s *JSONStore) Path() string { return s.path }

// Load returns every record in file order. A missing file is created holding
// an empty collection. A file that is empty, is not a JSON array, or holds a
// non-object element is reported as a CorruptionError.
func (s *JSONStore) Load() ([]types.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.Save(nil); err != nil {
			return nil, err
		}
		return []types.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &types.CorruptionError{Path: s.path, Err: errors.New("file is empty")}
	}
	records, err := types.DecodeRecords(data)
	if err != nil {
		return nil, &types.CorruptionError{Path: s.path, Err: err}
	}
	return records, nil
}

// Save replaces the collection. The new content is written to a temporary
// file in the same directory and renamed over the original, so a failure at
// any point leaves the previous file intact.
func (s *JSONStore) Save(records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	var (
		data []byte
		err  error
	)
	if s.indent > 0 {
		data, err = json.MarshalIndent(records, "", strings.Repeat(" ", s.indent))
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "encode", Err: err}
	}
	return writeAtomic(s.path, append(data, '\n'))
}
