package storage

import (
	"context"
	"encoding/base32"
	"os"
	"path/filepath"
	"sync"
)

// fileStore persists each key as a file in a directory. Writes go
// through a temp file plus rename so a crash never leaves a half
// written record behind.
type fileStore struct {
	mu  sync.Mutex
	dir string
}

// File creates a file-backed Store rooted at dir, creating it if needed.
func File(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &fileStore{dir: dir}, nil
}

// keys may contain path-hostile characters, so encode them.
var keyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, keyEncoding.EncodeToString([]byte(key)))
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *fileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.path(key))
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *fileStore) Close() error {
	return nil
}
