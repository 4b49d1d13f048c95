package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/holomem/pkg/storage"
)

// TestFileStorageSuite runs the full store test suite against FileStorage.
func TestFileStorageSuite(t *testing.T) {
	dirs := make(map[storage.Store]string)

	suite := &storage.StoreTestSuite{
		NewStore: func(t *testing.T) storage.Store {
			dir := t.TempDir()
			fs, err := NewFileStorage(&Config{Dir: dir, Sync: true})
			require.NoError(t, err)
			dirs[fs] = dir
			return fs
		},
		Reopen: func(t *testing.T, s storage.Store) storage.Store {
			dir := dirs[s]
			require.NoError(t, s.Close())
			fs, err := NewFileStorage(&Config{Dir: dir})
			require.NoError(t, err)
			return fs
		},
	}
	suite.RunAllTests(t)
}

func TestFileStorage_KeysWithSeparators(t *testing.T) {
	fs, err := NewFileStorage(&Config{Dir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	key := "unit:a/b c?"
	require.NoError(t, fs.Put(ctx, key, []byte("v")))

	keys, err := fs.Keys(ctx, "unit:")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	got, err := fs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestFileStorage_IgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(&Config{Dir: dir})
	require.NoError(t, err)

	// An interrupted write leaves a temp file behind.
	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"123"), []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	keys, err := fs.Keys(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStorage_NoTempFilesAfterPut(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(&Config{Dir: dir, Sync: true})
	require.NoError(t, err)

	require.NoError(t, fs.Put(context.Background(), "unit:x", []byte("v")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "unit:x"+recordExt, entries[0].Name())
}

func TestNewFileStorage_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := NewFileStorage(&Config{Dir: path})
	var unavailable *storage.StorageUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestFileStorage_EmptyKey(t *testing.T) {
	fs, err := NewFileStorage(&Config{Dir: t.TempDir()})
	require.NoError(t, err)

	err = fs.Put(context.Background(), "", []byte("x"))
	var invalid *storage.InvalidKeyError
	assert.ErrorAs(t, err, &invalid)
}
