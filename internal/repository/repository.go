// Package repository implements the record repository: identity-bearing CRUD
// over one collection file, validated against one entity schema.
//
// A Repository holds no records between calls. Every operation takes the
// collection lock, loads the whole collection from its Store, works on it in
// memory and, when it changed something, saves the whole collection back.
package repository

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/store"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Locker serializes access to a collection file across processes.
type Locker interface {
	Lock(path string) (store.Unlocker, error)
	RLock(path string) (store.Unlocker, error)
}

// fileMutexes serializes repositories that share a file within this process,
// including ones built independently for the same path.
var fileMutexes sync.Map // path -> *sync.RWMutex

func fileMutex(path string) *sync.RWMutex {
	mu, _ := fileMutexes.LoadOrStore(path, &sync.RWMutex{})
	return mu.(*sync.RWMutex)
}

// Repository implements types.Repository.
type Repository struct {
	store  types.Store
	schema *schema.Schema
	locker Locker
	log    logging.Logger
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithLocker replaces the default flock-based locker.
func WithLocker(l Locker) Option {
	return func(r *Repository) { r.locker = l }
}

// WithLogger sets the logger; the default discards.
func WithLogger(log logging.Logger) Option {
	return func(r *Repository) { r.log = log }
}

// WithClock sets the time source for generated timestamps and future checks.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New returns a repository over st validated by sc.
func New(st types.Store, sc *schema.Schema, opts ...Option) *Repository {
	r := &Repository{
		store:  st,
		schema: sc,
		locker: store.NewLocker(types.DefaultLockTimeout),
		log:    logging.NoOpLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the schema records are validated against.
func (r *Repository) Schema() *schema.Schema { return r.schema }

// Path returns the collection file.
func (r *Repository) Path() string { return r.store.Path() }

// Create validates fields, assigns the next id and persists the new record.
// Invalid input is rejected before the collection is touched.
func (r *Repository) Create(fields map[string]any) (types.Record, error) {
	rec, err := r.schema.Prepare(fields, r.now())
	if err != nil {
		return nil, err
	}

	var created types.Record
	err = r.write(func(records []types.Record) ([]types.Record, bool, error) {
		id, err := nextID(records)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", r.schema.Name, err)
		}
		rec[types.FieldID] = id
		created = rec
		if app, ok := r.store.(types.Appender); ok {
			if err := app.Append(rec); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		return append(records, rec), true, nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Debugf("%s: created record %d", r.schema.Name, created[types.FieldID])
	return created.Clone(), nil
}

// Get returns the record with the given id, or (nil, false, nil) when there
// is none.
func (r *Repository) Get(id int64) (types.Record, bool, error) {
	var found types.Record
	err := r.read(func(records []types.Record) {
		if i := indexOf(records, id); i >= 0 {
			found = records[i]
		}
	})
	if err != nil {
		return nil, false, err
	}
	r.log.Tracef("%s: get %d found=%t", r.schema.Name, id, found != nil)
	if found == nil {
		return nil, false, nil
	}
	return found, true, nil
}

// Update merges patch into the record with the given id. Keys in patch
// overwrite, omitted keys keep their values, and a nil value is stored as
// null. A patch that fails validation leaves the collection unchanged.
func (r *Repository) Update(id int64, patch map[string]any) (types.Record, error) {
	var updated types.Record
	err := r.write(func(records []types.Record) ([]types.Record, bool, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, false, &types.NotFoundError{Entity: r.schema.Name, ID: id}
		}
		changes, err := r.schema.PreparePatch(patch, r.now())
		if err != nil {
			return nil, false, err
		}
		rec := records[i].Clone()
		for k, v := range changes {
			rec[k] = v
		}
		records[i] = rec
		updated = rec
		return records, true, nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Debugf("%s: updated record %d", r.schema.Name, id)
	return updated.Clone(), nil
}

// Delete removes the record with the given id. It reports false, and writes
// nothing, when there is no such record.
func (r *Repository) Delete(id int64) (bool, error) {
	removed := false
	err := r.write(func(records []types.Record) ([]types.Record, bool, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, false, nil
		}
		removed = true
		return append(records[:i], records[i+1:]...), true, nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.log.Debugf("%s: deleted record %d", r.schema.Name, id)
	}
	return removed, nil
}

// List returns the whole collection in storage order.
func (r *Repository) List() ([]types.Record, error) {
	return r.Find(nil)
}

// Find returns the records matching filter in storage order.
func (r *Repository) Find(filter types.Filter) ([]types.Record, error) {
	var out []types.Record
	err := r.read(func(records []types.Record) {
		out = make([]types.Record, 0, len(records))
		for _, rec := range records {
			if filter.Match(rec) {
				out = append(out, rec)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	r.log.Tracef("%s: find %v matched %d", r.schema.Name, filter, len(out))
	return out, nil
}

// Count returns the number of records in the collection.
func (r *Repository) Count() (int, error) {
	n := 0
	err := r.read(func(records []types.Record) { n = len(records) })
	return n, err
}

// Compact loads, checks and rewrites the collection. For line-delimited
// stores this folds appended lines into a freshly written file.
func (r *Repository) Compact() (int, error) {
	n := 0
	err := r.write(func(records []types.Record) ([]types.Record, bool, error) {
		n = len(records)
		return records, true, nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Debugf("%s: compacted %d records", r.schema.Name, n)
	return n, nil
}

// read runs fn on a freshly loaded collection under a shared lock.
func (r *Repository) read(fn func([]types.Record)) error {
	mu := fileMutex(r.store.Path())
	mu.RLock()
	defer mu.RUnlock()

	lk, err := r.locker.RLock(r.store.Path())
	if err != nil {
		return err
	}
	defer lk.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	fn(records)
	return nil
}

// write runs fn on a freshly loaded collection under the exclusive lock and
// saves its result when fn reports a change.
func (r *Repository) write(fn func([]types.Record) ([]types.Record, bool, error)) error {
	mu := fileMutex(r.store.Path())
	mu.Lock()
	defer mu.Unlock()

	lk, err := r.locker.Lock(r.store.Path())
	if err != nil {
		return err
	}
	defer lk.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	next, changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	return r.store.Save(next)
}

// load reads the collection and checks that every record carries a unique,
// non-negative integer id. Ids are normalized to int64.
func (r *Repository) load() ([]types.Record, error) {
	records, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]int, len(records))
	for i, rec := range records {
		id, ok := rec.ID()
		if !ok {
			return nil, &types.CorruptionError{
				Path: r.store.Path(),
				Err:  fmt.Errorf("record %d has no valid id: %v", i+1, rec[types.FieldID]),
			}
		}
		if first, dup := seen[id]; dup {
			return nil, &types.CorruptionError{
				Path: r.store.Path(),
				Err:  fmt.Errorf("records %d and %d share id %d", first+1, i+1, id),
			}
		}
		seen[id] = i
		rec[types.FieldID] = id
	}
	return records, nil
}

// nextID is one more than the largest id in records, or 1 when empty. It
// fails with ErrIDExhausted when the largest id is already math.MaxInt64.
func nextID(records []types.Record) (int64, error) {
	var maxID int64
	for _, rec := range records {
		if id, _ := rec.ID(); id > maxID {
			maxID = id
		}
	}
	if maxID == math.MaxInt64 {
		return 0, types.ErrIDExhausted
	}
	return maxID + 1, nil
}

func indexOf(records []types.Record, id int64) int {
	for i, rec := range records {
		if rid, _ := rec.ID(); rid == id {
			return i
		}
	}
	return -1
}

var _ types.Repository = (*Repository)(nil)
