package rendercache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrBadFilename rejects names that would escape the cache directory.
var ErrBadFilename = errors.New("rendercache: invalid artifact filename")

// Store is a flat on-disk artifact store over one base directory.
//
// Contract:
// - Concurrency: safe for concurrent use; it holds no in-memory state and
//   relies on atomic rename semantics of the underlying filesystem.
// - Errors: I/O failures surface to the caller; a partially written artifact
//   is never visible under its final name.
type Store struct {
	dir string
}

// NewStore creates the base directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rendercache: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether an artifact with the given filename has been
// published. Pure filesystem probe.
func (s *Store) Exists(name string) bool {
	path, err := s.path(name)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

// Read returns a published artifact's bytes.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Save publishes an artifact atomically: the bytes are written to a
// dot-prefixed sibling and renamed into place, so a concurrent reader never
// observes a truncated file. Each writer gets its own temporary file, so
// concurrent saves of one name cannot interleave before the rename. On
// failure the temporary file is removed and nothing appears under the final
// name.
func (s *Store) Save(name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("rendercache: write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendercache: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendercache: write %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendercache: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendercache: publish %s: %w", name, err)
	}
	return nil
}

// path validates the filename and resolves it inside the base directory.
func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name[0] == '.' {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	return filepath.Join(s.dir, name), nil
}
