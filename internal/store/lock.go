package store

import (
	"path/filepath"
	"time"
)

// locksDirName is the subdirectory holding lock files, so that taking a lock
// never adds or removes entries next to the collection files.
const locksDirName = ".locks"

// Unlocker releases a held lock.
type Unlocker interface {
	Unlock() error
}

// LockPath returns the sidecar lock file guarding path.
func LockPath(path string) string {
	return filepath.Join(filepath.Dir(path), locksDirName, filepath.Base(path)+".lock")
}

// Locker takes advisory locks that serialize access to a collection file
// across processes. A zero timeout tries once.
type Locker struct {
	timeout time.Duration
}

// NewLocker returns a Locker that waits at most timeout for a lock. A
// negative timeout, such as types.LockNoWait, tries once.
func NewLocker(timeout time.Duration) *Locker {
	return &Locker{timeout: max(timeout, 0)}
}

// Lock takes the exclusive lock for the collection file at path.
func (l *Locker) Lock(path string) (Unlocker, error) {
	lk, err := acquire(LockPath(path), true, l.timeout)
	if err != nil {
		return nil, err
	}
	return lk, nil
}

// RLock takes a shared lock for the collection file at path.
func (l *Locker) RLock(path string) (Unlocker, error) {
	lk, err := acquire(LockPath(path), false, l.timeout)
	if err != nil {
		return nil, err
	}
	return lk, nil
}
