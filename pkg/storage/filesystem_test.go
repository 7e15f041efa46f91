package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStreamAndOpenRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.SaveStream("materials/c1/m1_bab1.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("a.txt"))
	require.NoError(t, store.Delete("a.txt"), "deleting an absent file is not an error")
}

func TestCleanupOlderThanRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.SaveStream("materials/c1/old.pdf", strings.NewReader("old"))
	require.NoError(t, err)
	_, err = store.SaveStream("materials/c1/fresh.pdf", strings.NewReader("fresh"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "materials/c1/old.pdf"), stale, stale))

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("materials", "c1", "old.pdf")}, removed)
	_, err = store.Open("materials/c1/fresh.pdf")
	assert.NoError(t, err)
	_, err = store.Open("materials/c1/old.pdf")
	assert.Error(t, err)
}
