package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaredmtdev/shardfeed/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"part-00001", "part-00000", "_SUCCESS", "other-0"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "part-dir"), 0o700))

	names, err := storage.Local{}.List(context.Background(), dir, "part-*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "part-00000"),
		filepath.Join(dir, "part-00001"),
	}, names)
}

func TestLocalListEmpty(t *testing.T) {
	names, err := storage.Local{}.List(context.Background(), t.TempDir(), "part-*")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalListBadPattern(t *testing.T) {
	_, err := storage.Local{}.List(context.Background(), t.TempDir(), "part-[")
	assert.Error(t, err)
}

func TestLocalListMissingDir(t *testing.T) {
	_, err := storage.Local{}.List(context.Background(), filepath.Join(t.TempDir(), "nope"), "part-*")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "part-0")
	require.NoError(t, os.WriteFile(name, []byte("payload"), 0o600))

	rc, err := storage.Local{}.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestForPicksBackend(t *testing.T) {
	fs, err := storage.For(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, storage.Local{}, fs)
}
