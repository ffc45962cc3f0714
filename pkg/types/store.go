package types

// Store translates between a collection of records and one durable file.
// Implementations must never leave the file partially written: a failed Save
// keeps the previously persisted content intact.
type Store interface {
	// Load reads the whole collection in storage order. A missing file is
	// created holding an empty collection. Unreadable content fails with a
	// *CorruptionError rather than an empty result.
	Load() ([]Record, error)

	// Save replaces the persisted collection with records. Failures are
	// reported as *WriteError.
	Save(records []Record) error

	// Path returns the file the store is bound to.
	Path() string
}

// Appender is implemented by stores that can add a single record without
// rewriting the whole collection (line-delimited files).
type Appender interface {
	Append(record Record) error
}

// Repository provides identity-bearing CRUD over one collection, validated
// against one entity schema. Every call is a complete load, mutate, save cycle.
type Repository interface {
	// Create validates fields, assigns the next id (max id + 1) and persists
	// the new record. Returns the stored record including its id.
	Create(fields map[string]any) (Record, error)

	// Get returns the record with the given id. Absence is not an error: it
	// returns (nil, false, nil).
	Get(id int64) (Record, bool, error)

	// Update merges patch into the record with the given id. Returns a
	// *NotFoundError when no such record exists.
	Update(id int64, patch map[string]any) (Record, error)

	// Delete removes the record with the given id and reports whether a record
	// was removed.
	Delete(id int64) (bool, error)

	// List returns the whole collection in storage order.
	List() ([]Record, error)

	// Find returns the records matching filter in storage order.
	Find(filter Filter) ([]Record, error)

	// Count returns the number of records in the collection.
	Count() (int, error)
}

// Shelf gives backend-agnostic access to the collections under one data
// directory. Callers attach, obtain repositories by entity name, and detach
// when done.
type Shelf interface {
	// Attach binds the shelf to the data directory described by config.
	// Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases the shelf. Idempotent. Afterwards Repository returns
	// ErrShelfDetached.
	Detach() error

	// Repository returns a repository for the named entity, bound to that
	// entity's collection file. Returns ErrEntityNotFound for unknown names.
	Repository(entity string) (Repository, error)

	// Entities lists the registered entity names in sorted order.
	Entities() []string
}
