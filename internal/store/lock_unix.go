//go:build unix

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	lockFilePerm = 0o600
	maxBackoff   = 25 * time.Millisecond
)

type fileLock struct {
	mu   sync.Mutex
	file *os.File
}

// Unlock releases the flock and closes the descriptor. It is idempotent.
// The lock file itself is left in place: unlinking it would let a waiter
// lock an inode no one else can see.
func (lk *fileLock) Unlock() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}
	unlockErr := flockRetryEINTR(int(lk.file.Fd()), unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil
	return errors.Join(unlockErr, closeErr)
}

// acquire polls a non-blocking flock with backoff until it succeeds or the
// timeout expires.
func acquire(lockPath string, exclusive bool, timeout time.Duration) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), dirPerm); err != nil {
		return nil, fmt.Errorf("creating locks dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockFilePerm)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	deadline := time.Now().Add(timeout)
	backoff := time.Millisecond

	for {
		err := flockRetryEINTR(int(f.Fd()), how|unix.LOCK_NB)
		if err == nil {
			return &fileLock{file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.Close()
			return nil, fmt.Errorf("%w after %s: %s", types.ErrLockTimeout, timeout, lockPath)
		}
		time.Sleep(min(backoff, remaining))
		backoff = min(backoff*2, maxBackoff)
	}
}

func flockRetryEINTR(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
