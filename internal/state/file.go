// Package state keeps the small amount of data the poller must carry across
// process restarts: the scheduler anchor and the device source ID.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Load when nothing has been saved under a key.
var ErrNotFound = errors.New("state not found")

// FileStore persists JSON documents, one file per key, in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load decodes the document saved under key into v.
func (s *FileStore) Load(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read state %q: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode state %q: %w", key, err)
	}
	return nil
}

// Save writes v under key. The write goes through a temp file and a rename so
// a crash never leaves a half-written document behind.
func (s *FileStore) Save(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write state %q: %w", key, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state %q: %w", key, err)
	}
	return nil
}

const sourceIDKey = "source_id"

// SourceID returns the persisted device source ID, generating and saving a
// new UUID the first time.
func (s *FileStore) SourceID() (string, error) {
	var id string
	err := s.Load(sourceIDKey, &id)
	switch {
	case err == nil && strings.TrimSpace(id) != "":
		return id, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return "", err
	}

	id = uuid.NewString()
	if err := s.Save(sourceIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}
