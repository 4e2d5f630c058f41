package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// failingFileSystem implements FileSystem returning a fixed error for
// mutating operations
type failingFileSystem struct {
	err error
}

func (f *failingFileSystem) MkdirAll(string, os.FileMode) error { return f.err }

func (f *failingFileSystem) WriteFile(string, []byte, os.FileMode) error { return f.err }

func (f *failingFileSystem) RemoveAll(string) error { return f.err }

func TestValidateKey(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple key", "my-session", false},
		{"key with underscore", "session_42", false},
		{"empty key", "", true},
		{"whitespace key", "   ", true},
		{"parent traversal", "../escape", true},
		{"embedded traversal", "a..b", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateKey(tc.key)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStoreResolve(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("CreatesDirectoryLazily", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		dir, err := store.Resolve("alpha")
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})

	t.Run("DeterministicAndIdempotent", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		first, err := store.Resolve("alpha")
		require.NoError(t, err)
		second, err := store.Resolve("alpha")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, filepath.Join(store.BaseDir(), "alpha"), first)
	})

	t.Run("DistinctKeysDistinctDirectories", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		a, err := store.Resolve("a")
		require.NoError(t, err)
		b, err := store.Resolve("b")
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("RejectsTraversalKeys", func(t *testing.T) {
		base := t.TempDir()
		store, err := New(logger, base)
		require.NoError(t, err)

		for _, key := range []string{"..", "../x", "a/b", `a\b`, ""} {
			_, err := store.Resolve(key)
			assert.ErrorIs(t, err, ErrInvalidKey, "key %q should be rejected", key)
		}

		// No directory may be created for a rejected key
		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		fsErr := errors.New("disk full")
		store := &Store{
			logger:  logger,
			baseDir: t.TempDir(),
			fs:      &failingFileSystem{err: fsErr},
		}

		_, err := store.Resolve("alpha")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStorage)
	})
}

func TestStoreList(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("EmptyWhenBaseDirMissing", func(t *testing.T) {
		store := &Store{
			logger:  logger,
			baseDir: filepath.Join(t.TempDir(), "does-not-exist"),
			fs:      &RealFileSystem{},
		}

		keys, err := store.List()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("ListsOnlyDirectories", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		_, err = store.Resolve("one")
		require.NoError(t, err)
		_, err = store.Resolve("two")
		require.NoError(t, err)

		// A stray regular file in the base dir is not a session
		require.NoError(t, os.WriteFile(filepath.Join(store.BaseDir(), "stray.txt"), []byte("x"), 0o600))

		keys, err := store.List()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"one", "two"}, keys)
	})
}

func TestStoreClear(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("DeletesAndReportsTrue", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		dir, err := store.Resolve("gone")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("x"), 0o600))

		deleted, err := store.Clear("gone")
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.NoDirExists(t, dir)
	})

	t.Run("IdempotentSecondCallReturnsFalse", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		_, err = store.Resolve("gone")
		require.NoError(t, err)

		deleted, err := store.Clear("gone")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.Clear("gone")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("NonExistentKeyReturnsFalse", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		deleted, err := store.Clear("never-created")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("ClearThenListFilesIsEmpty", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		dir, err := store.Resolve("s")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("x"), 0o600))

		_, err = store.Clear("s")
		require.NoError(t, err)

		files, err := store.ListFiles("s")
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestStoreListFiles(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("SortedNonHiddenRegularFiles", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		dir, err := store.Resolve("s")
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("h"), 0o600))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), DirPermission))

		files, err := store.ListFiles("s")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt"}, files)
	})

	t.Run("EmptyForFreshSession", func(t *testing.T) {
		store, err := New(logger, t.TempDir())
		require.NoError(t, err)

		files, err := store.ListFiles("fresh")
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestStoreExists(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store, err := New(logger, t.TempDir())
	require.NoError(t, err)

	exists, err := store.Exists("nope")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Resolve("yep")
	require.NoError(t, err)

	exists, err = store.Exists("yep")
	require.NoError(t, err)
	assert.True(t, exists)
}
