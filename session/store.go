package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrStorage indicates an unrecoverable filesystem failure (permissions,
// disk full) while managing session directories.
var ErrStorage = errors.New("session storage failure")

// ErrInvalidKey indicates a session key that is empty or contains
// path-traversal sequences.
var ErrInvalidKey = errors.New("invalid session key")

// DirPermission is the mode used for session directories
const DirPermission = 0755

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// ValidateKey rejects empty keys and keys containing path-traversal
// sequences before any directory is touched.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	if strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: key contains invalid characters: %s", ErrInvalidKey, key)
	}
	return nil
}

// Store maps session keys to durable directories under a base directory
type Store struct {
	logger  *zap.Logger
	baseDir string
	fs      FileSystem
}

// StoreOption defines a functional option for Store
type StoreOption func(*Store)

// WithFileSystem sets the FileSystem for Store
func WithFileSystem(fs FileSystem) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// New creates a Store rooted at baseDir, creating baseDir if needed.
// The base directory is resolved to an absolute path so later working
// directory changes cannot move the store.
func New(logger *zap.Logger, baseDir string, opts ...StoreOption) (*Store, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving base dir: %v", ErrStorage, err)
	}

	store := &Store{
		logger:  logger,
		baseDir: abs,
		fs:      &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(store)
	}

	if err := store.fs.MkdirAll(abs, DirPermission); err != nil {
		return nil, fmt.Errorf("%w: creating base dir %s: %v", ErrStorage, abs, err)
	}

	logger.Info("session store initialized", zap.String("base_dir", abs))

	return store, nil
}

// BaseDir returns the absolute base directory of the store
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Resolve returns the directory for key, creating it if absent.
// The path is a deterministic function of the key and the base directory.
// Idempotent; safe to call repeatedly.
func (s *Store) Resolve(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	dir := filepath.Join(s.baseDir, key)
	if err := s.fs.MkdirAll(dir, DirPermission); err != nil {
		return "", fmt.Errorf("%w: creating session dir %s: %v", ErrStorage, dir, err)
	}

	return dir, nil
}

// List enumerates the keys of all existing sessions. Returns an empty
// slice if the base directory does not yet exist. Order is not guaranteed.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: reading base dir: %v", ErrStorage, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			keys = append(keys, entry.Name())
		}
	}

	return keys, nil
}

// Clear recursively deletes the session directory if present and reports
// whether anything was deleted. Repeated calls after the first return
// false, not an error.
func (s *Store) Clear(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	dir := filepath.Join(s.baseDir, key)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat session dir %s: %v", ErrStorage, dir, err)
	}

	if err := s.fs.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("%w: removing session dir %s: %v", ErrStorage, dir, err)
	}

	s.logger.Info("session cleared", zap.String("session_id", key))

	return true, nil
}

// ListFiles returns the non-hidden regular files directly inside the
// session directory, lexicographically sorted. The session directory is
// created if it does not exist yet.
func (s *Store) ListFiles(key string) ([]string, error) {
	dir, err := s.Resolve(key)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading session dir %s: %v", ErrStorage, dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}

// Exists reports whether a session directory already exists for key
func (s *Store) Exists(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	info, err := os.Stat(filepath.Join(s.baseDir, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat session dir: %v", ErrStorage, err)
	}

	return info.IsDir(), nil
}
