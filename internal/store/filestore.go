package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists structured records as one JSON document per key inside a
// data directory. Documents are written atomically (temp file + rename) so a
// crashed write never corrupts an existing record, and writes to one key never
// touch any other key's file.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Lock acquires the mutex for a single document and returns its unlock
// function. Callers wrap a read-modify-write cycle in it; operations on
// different documents proceed independently.
func (s *FileStore) Lock(name string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load unmarshals the named document into out. It reports found=false when
// the document does not exist, leaving out untouched; absence is not an error.
func (s *FileStore) Load(name string, out any) (found bool, err error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return true, nil
}

// Save writes the document atomically. The JSON is indented so the on-disk
// state stays inspectable with a text editor.
func (s *FileStore) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := s.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

// Delete removes the document entirely and reports whether it existed.
func (s *FileStore) Delete(name string) (bool, error) {
	err := os.Remove(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}
