package profile

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store is a thin wrapper over a local LevelDB database holding cached user
// records, cache timestamps, and session cookies.
//
// Contract:
// - Concurrency: safe for concurrent use (LevelDB handles locking).
// - Errors: Get reports absence as (nil, false, nil), not an error.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: open store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for key, with ok=false on absence.
func (s *Store) Get(key string) ([]byte, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile: store get %s: %w", key, err)
	}
	return v, true, nil
}

// Put stores value under key.
func (s *Store) Put(key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("profile: store put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Idempotent.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("profile: store delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is usable, for health checks.
func (s *Store) Ping() error {
	_, _, err := s.Get("ping")
	return err
}
