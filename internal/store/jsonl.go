package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 << 20

// JSONLStore keeps a collection as one JSON object per line. Creating a
// record appends a line; every other mutation rewrites the file.
type JSONLStore struct {
	path string
}

// NewJSONLStore returns a store for the JSONL file at path.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Path returns the collection file.
func (s *JSONLStore) Path() string { return s.path }

// Load reads every non-blank line as a record. A missing file is created
// empty. A line that does not hold a JSON object makes the whole collection
// unreadable: Load returns a CorruptionError naming the line.
func (s *JSONLStore) Load() ([]types.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.Save(nil); err != nil {
			return nil, err
		}
		return []types.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	records := []types.Record{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		rec, err := types.DecodeRecord(text)
		if err != nil {
			return nil, &types.CorruptionError{Path: s.path, Line: line, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.CorruptionError{Path: s.path, Line: line + 1, Err: err}
	}
	return records, nil
}

// Save rewrites the file atomically with one encoded record per line.
func (s *JSONLStore) Save(records []types.Record) error {
	var buf bytes.Buffer
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return &types.WriteError{Path: s.path, Op: "encode", Err: err}
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return writeAtomic(s.path, buf.Bytes())
}

// Append adds one record at the end of the file and syncs it before
// returning. A failed write or sync truncates the file back to its previous
// length, so the collection never ends in a partial line.
func (s *JSONLStore) Append(rec types.Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "encode", Err: err}
	}
	line = append(line, '\n')

	if err := ensureDir(s.path); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, filePerm)
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "open", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &types.WriteError{Path: s.path, Op: "stat", Err: err}
	}
	size := info.Size()

	rollback := func(op string, err error) error {
		if rerr := rollbackTo(f, size); rerr != nil {
			f.Close()
			return &types.CorruptionError{Path: s.path, Err: fmt.Errorf("%s failed (%w) and truncating to %d bytes failed: %w", op, err, size, rerr)}
		}
		f.Close()
		return &types.WriteError{Path: s.path, Op: op, Err: err}
	}

	if err := s.terminate(f, size); err != nil {
		return rollback("append", err)
	}
	if _, err := f.Write(line); err != nil {
		return rollback("append", err)
	}
	if err := f.Sync(); err != nil {
		return rollback("sync", err)
	}
	if err := f.Close(); err != nil {
		return &types.WriteError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}

// rollbackTo cuts f back to size and syncs the result.
func rollbackTo(f *os.File, size int64) error {
	if err := f.Truncate(size); err != nil {
		return err
	}
	return f.Sync()
}

// terminate writes a newline when the file is non-empty and its last byte is
// not one, so an appended record always starts on its own line.
func (s *JSONLStore) terminate(f *os.File, size int64) error {
	if size == 0 {
		return nil
	}
	r, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer r.Close()
	last := make([]byte, 1)
	if _, err := r.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}
