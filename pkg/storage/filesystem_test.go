package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("job-1/summary.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "job-1/summary.csv", name)

	file, err := store.Open(name)
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "a,b\n1,2\n", string(body))

	require.NoError(t, store.Delete(name))
	require.NoError(t, store.Delete(name))
	_, err = store.Open(name)
	assert.Error(t, err)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.csv", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Open("/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, store.Delete(""), ErrInvalidPath)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)

	_, err = store.Save("old/a.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("new/b.csv", []byte("new"))
	require.NoError(t, err)
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "old", "a.csv"), stale, stale))

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/a.csv"}, removed)

	_, err = store.Open("new/b.csv")
	assert.NoError(t, err)
}
