package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, maxBytes int64) *VideoStore {
	t.Helper()
	s, err := NewVideoStore(Config{Dir: filepath.Join(t.TempDir(), "uploads"), MaxBytes: maxBytes}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSave(t *testing.T) {
	s := newTestStore(t, 1024)

	path, n, err := s.Save(strings.NewReader("fake mp4 bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)
	assert.True(t, s.Owns(path))
	assert.Regexp(t, regexp.MustCompile(`^video_\d+_[0-9a-f]{8}\.mp4$`), filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake mp4 bytes", string(data))
}

func TestSaveUniqueNames(t *testing.T) {
	s := newTestStore(t, 0)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	a, _, err := s.Save(strings.NewReader("a"))
	require.NoError(t, err)
	b, _, err := s.Save(strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSaveEmpty(t *testing.T) {
	s := newTestStore(t, 1024)

	_, _, err := s.Save(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyUpload)
	assert.Empty(t, listDir(t, s.Dir()))
}

func TestSaveTooLarge(t *testing.T) {
	s := newTestStore(t, 8)

	_, _, err := s.Save(strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, listDir(t, s.Dir()))

	_, n, err := s.Save(strings.NewReader("01234567"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestSaveInsufficientSpace(t *testing.T) {
	s := newTestStore(t, 0)
	s.cfg.MinFreeBytes = ^uint64(0)

	_, _, err := s.Save(strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrInsufficientSpace)
	assert.Empty(t, listDir(t, s.Dir()))
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, 0)

	path, _, err := s.Save(strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove(path), "second remove is a no-op")

	assert.Error(t, s.Remove("/etc/passwd"))
}

func TestJanitorRunOnce(t *testing.T) {
	s := newTestStore(t, 0)

	old, _, err := s.Save(strings.NewReader("old"))
	require.NoError(t, err)
	current, _, err := s.Save(strings.NewReader("current"))
	require.NoError(t, err)
	fresh, _, err := s.Save(strings.NewReader("fresh"))
	require.NoError(t, err)
	other := filepath.Join(s.Dir(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o644))

	past := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{old, current, other} {
		require.NoError(t, os.Chtimes(p, past, past))
	}

	j := NewJanitor(DefaultJanitorConfig(), s, func() string { return current }, zap.NewNop())
	assert.Equal(t, 1, j.RunOnce())

	assert.NoFileExists(t, old)
	assert.FileExists(t, current)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	stats := j.Stats()
	assert.Equal(t, int64(1), stats.TotalFilesDeleted)
	assert.Equal(t, int64(3), stats.TotalBytesFreed)
}

func TestJanitorStartStop(t *testing.T) {
	s := newTestStore(t, 0)
	j := NewJanitor(JanitorConfig{Enabled: true, Retention: time.Hour, Interval: 10 * time.Millisecond}, s, nil, zap.NewNop())
	j.Start()
	j.Stop()

	disabled := NewJanitor(JanitorConfig{}, s, nil, zap.NewNop())
	disabled.Start()
	disabled.Stop()
}
