package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// limitFileSize lowers the soft RLIMIT_FSIZE so writes past n bytes fail with
// EFBIG. The returned func restores the previous limit; it also runs at
// cleanup.
func limitFileSize(t *testing.T, n int64) func() {
	t.Helper()
	var old unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_FSIZE, &old))
	lowered := old
	lowered.Cur = uint64(n)
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_FSIZE, &lowered))

	restored := false
	restore := func() {
		if !restored {
			restored = true
			unix.Setrlimit(unix.RLIMIT_FSIZE, &old)
		}
	}
	t.Cleanup(restore)
	return restore
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestJSONLAppendFailureTruncatesPartialLine(t *testing.T) {
	s := NewJSONLStore(filepath.Join(t.TempDir(), "task.jsonl"))
	require.NoError(t, s.Save(sampleRecords()))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	restore := limitFileSize(t, fileSize(t, s.Path())+20)
	err = s.Append(types.Record{"id": int64(4), "title": strings.Repeat("x", 200)})
	restore()
	require.ErrorIs(t, err, types.ErrStorageWrite)
	assert.NotErrorIs(t, err, types.ErrStorageCorruption)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	got, err := s.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRecords(), got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONLAppendFailureDropsAddedTerminator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":1}`), 0o644))
	s := NewJSONLStore(path)

	// Room for the newline that terminates the last line, not for the record.
	restore := limitFileSize(t, fileSize(t, path)+5)
	err := s.Append(types.Record{"id": int64(2), "title": strings.Repeat("y", 100)})
	restore()
	require.ErrorIs(t, err, types.ErrStorageWrite)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(data))
}

func TestJSONLSaveFailureKeepsOriginal(t *testing.T) {
	s := NewJSONLStore(filepath.Join(t.TempDir(), "task.jsonl"))
	require.NoError(t, s.Save(sampleRecords()))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	big := []types.Record{{"id": int64(1), "title": strings.Repeat("z", 4096)}}
	restore := limitFileSize(t, fileSize(t, s.Path())+10)
	err = s.Save(big)
	restore()
	require.ErrorIs(t, err, types.ErrStorageWrite)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}
