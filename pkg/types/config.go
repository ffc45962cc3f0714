package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for Shelf.Attach.
type Config struct {
	Backend     string        `json:"backend" yaml:"backend"`
	DataDir     string        `json:"data_dir" yaml:"data_dir"`
	SchemaDir   string        `json:"schema_dir,omitempty" yaml:"schema_dir,omitempty"`
	Indent      int           `json:"indent" yaml:"indent"`
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`
}

// Supported backend names.
const (
	BackendJSON   = "json"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Defaults applied by WithDefaults.
const (
	DefaultBackend     = BackendJSON
	DefaultIndent      = 2
	DefaultLockTimeout = 2 * time.Second
	maxIndent          = 8
)

// LockNoWait as a LockTimeout makes a busy collection fail at once instead of
// waiting. The zero LockTimeout means DefaultLockTimeout.
const LockNoWait time.Duration = -1

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrIndentInvalid      = errors.New("indent must be between 0 and 8")
	ErrLockTimeoutInvalid = errors.New("lock timeout must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendJSON:   true,
	BackendJSONL:  true,
	BackendSQLite: true,
}

// Backends returns the supported backend names.
func Backends() []string {
	return []string{BackendJSON, BackendJSONL, BackendSQLite}
}

// WithDefaults fills unset fields. A zero Indent is kept only when a backend
// was chosen explicitly, so callers may request compact JSON.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = DefaultBackend
		if c.Indent == 0 {
			c.Indent = DefaultIndent
		}
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Indent < 0 || c.Indent > maxIndent {
		return ErrIndentInvalid
	}
	if c.LockTimeout < 0 && c.LockTimeout != LockNoWait {
		return ErrLockTimeoutInvalid
	}
	return nil
}
