package types

import (
	"errors"
	"fmt"
	"strings"
)

// Record operation errors. The structured error types below wrap these so
// callers can test with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("record not found")
	ErrStorageCorruption = errors.New("storage corrupted")
	ErrStorageWrite      = errors.New("storage write failed")
	ErrInvalidID         = errors.New("invalid record ID")
	ErrLockTimeout       = errors.New("timed out waiting for collection lock")
	ErrIDExhausted       = errors.New("record id space exhausted")
)

// Shelf lifecycle errors.
var (
	ErrShelfDetached   = errors.New("shelf is detached")
	ErrAlreadyAttached = errors.New("shelf is already attached")
	ErrEntityNotFound  = errors.New("entity not found")
)

// ValidationError reports one field that failed one schema rule.
type ValidationError struct {
	Entity  string
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Entity != "" {
		b.WriteString(e.Entity)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "field %q failed %s", e.Field, e.Rule)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidationErrors collects every failing field of one create or update.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each field error to errors.Is and errors.As.
func (es ValidationErrors) Unwrap() []error {
	errs := make([]error, len(es))
	for i, e := range es {
		errs[i] = e
	}
	return errs
}

// Fields returns the names of the failing fields in report order.
func (es ValidationErrors) Fields() []string {
	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Field
	}
	return names
}

// NotFoundError reports a record id absent from its collection.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("record %d not found", e.ID)
	}
	return fmt.Sprintf("%s: record %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CorruptionError reports a collection file that cannot be read as valid data.
// Line is 1-based for line-delimited stores and 0 otherwise.
type CorruptionError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptionError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err == nil {
		return fmt.Sprintf("storage corrupted: %s", loc)
	}
	return fmt.Sprintf("storage corrupted: %s: %v", loc, e.Err)
}

func (e *CorruptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorageCorruption}
	}
	return []error{ErrStorageCorruption, e.Err}
}

// WriteError reports a failed filesystem write. The previously persisted
// collection is left intact.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage write failed (%s %s), no change was made: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorageWrite}
	}
	return []error{ErrStorageWrite, e.Err}
}
