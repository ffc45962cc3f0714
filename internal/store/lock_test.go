//go:build unix

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

func TestLockPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", ".locks", "task.json.lock"), LockPath("/data/task.json"))
}

func TestExclusiveLockTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on a held lock")
	}
	path := filepath.Join(t.TempDir(), "task.json")
	l := NewLocker(50 * time.Millisecond)

	held, err := l.Lock(path)
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Lock(path)
	assert.ErrorIs(t, err, types.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	_, err = l.RLock(path)
	assert.ErrorIs(t, err, types.ErrLockTimeout)

	require.NoError(t, held.Unlock())
	again, err := l.Lock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestNoWaitLockFailsAtOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	held, err := NewLocker(time.Second).Lock(path)
	require.NoError(t, err)
	defer held.Unlock()

	start := time.Now()
	_, err = NewLocker(types.LockNoWait).Lock(path)
	assert.ErrorIs(t, err, types.ErrLockTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSharedLocksCoexist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	l := NewLocker(50 * time.Millisecond)

	a, err := l.RLock(path)
	require.NoError(t, err)
	b, err := l.RLock(path)
	require.NoError(t, err)

	_, err = l.Lock(path)
	assert.ErrorIs(t, err, types.ErrLockTimeout)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Unlock())
}

func TestUnlockIsIdempotentAndKeepsLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	lk, err := NewLocker(time.Second).Lock(path)
	require.NoError(t, err)

	require.NoError(t, lk.Unlock())
	require.NoError(t, lk.Unlock())

	_, err = os.Stat(LockPath(path))
	assert.NoError(t, err)
}

func TestLockWaitsForRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on a held lock")
	}
	path := filepath.Join(t.TempDir(), "task.json")
	l := NewLocker(2 * time.Second)

	held, err := l.Lock(path)
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		held.Unlock()
	}()

	next, err := l.Lock(path)
	require.NoError(t, err)
	require.NoError(t, next.Unlock())
}
