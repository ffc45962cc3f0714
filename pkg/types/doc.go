// Package types defines the Record, Filter, Store, Repository and Shelf
// contracts, the backend Config, and the error taxonomy shared by every shelf
// backend.
//
// A Record is a field map whose values are JSON-compatible. Records that have
// been persisted carry an integer "id" field assigned by a Repository, never by
// the caller.
package types
