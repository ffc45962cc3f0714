//go:build !unix

package store

import "time"

type noopLock struct{}

func (noopLock) Unlock() error { return nil }

// acquire is a no-op where flock is unavailable; the repository's in-process
// mutex still serializes callers within one process.
func acquire(string, bool, time.Duration) (noopLock, error) {
	return noopLock{}, nil
}
