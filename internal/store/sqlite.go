package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

const createRecords = `CREATE TABLE IF NOT EXISTS records (
    position INTEGER PRIMARY KEY,
    body TEXT NOT NULL
);`

// SQLiteStore keeps a collection in a single-table SQLite database. Each row
// holds one record as JSON; row order is storage order. The database is
// opened for each call so no handle outlives the repository operation.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore returns a store for the database file at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) open() (*sql.DB, error) {
	if err := ensureDir(s.path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createRecords); err != nil {
		db.Close()
		return nil, &types.CorruptionError{Path: s.path, Err: err}
	}
	return db, nil
}

// Load returns every record ordered by position. A missing database is
// created empty. A file that is not a database, or a row whose body is not a
// JSON object, is reported as a CorruptionError.
func (s *SQLiteStore) Load() ([]types.Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT position, body FROM records ORDER BY position`)
	if err != nil {
		return nil, &types.CorruptionError{Path: s.path, Err: err}
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var (
			pos  int
			body string
		)
		if err := rows.Scan(&pos, &body); err != nil {
			return nil, &types.CorruptionError{Path: s.path, Err: err}
		}
		rec, err := types.DecodeRecord([]byte(body))
		if err != nil {
			return nil, &types.CorruptionError{Path: s.path, Line: pos, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.CorruptionError{Path: s.path, Err: err}
	}
	return records, nil
}

// Save replaces every row inside one transaction. If any statement or the
// commit fails, the transaction is rolled back and the previous rows remain.
func (s *SQLiteStore) Save(records []types.Record) error {
	bodies := make([]string, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return &types.WriteError{Path: s.path, Op: "encode", Err: err}
		}
		bodies[i] = string(data)
	}

	db, err := s.open()
	if err != nil {
		return asWriteError(s.path, "open", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return &types.WriteError{Path: s.path, Op: "delete", Err: err}
	}
	stmt, err := tx.Prepare(`INSERT INTO records (position, body) VALUES (?, ?)`)
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "prepare", Err: err}
	}
	defer stmt.Close()
	for i, body := range bodies {
		if _, err := stmt.Exec(i+1, body); err != nil {
			return &types.WriteError{Path: s.path, Op: "insert", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &types.WriteError{Path: s.path, Op: "commit", Err: err}
	}
	return nil
}

// Append inserts one record after the last position.
func (s *SQLiteStore) Append(rec types.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "encode", Err: err}
	}
	db, err := s.open()
	if err != nil {
		return asWriteError(s.path, "open", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO records (position, body)
		VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM records), ?)`, string(data))
	if err != nil {
		return &types.WriteError{Path: s.path, Op: "insert", Err: err}
	}
	return nil
}

func asWriteError(path, op string, err error) error {
	var werr *types.WriteError
	if errors.As(err, &werr) {
		return err
	}
	var corrupt *types.CorruptionError
	if errors.As(err, &corrupt) {
		err = corrupt.Err
	}
	return &types.WriteError{Path: path, Op: op, Err: err}
}
