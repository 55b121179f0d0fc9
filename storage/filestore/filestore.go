package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/go-backoffice-session/storage"
	"github.com/rs/zerolog/log"
)

var _ storage.KeyValue = (*Store)(nil)

// Store keeps every key in a single JSON document on disk. Writes go to a
// temporary file that is renamed over the document, so readers see either
// the previous document or the new one.
type Store struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

// Open loads the document at path. A missing document is an empty store.
// A corrupt document is logged and treated as empty; the next write
// replaces it.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("filestore: path is required")
	}

	s := &Store{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("filestore: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("filestore: corrupt document, starting empty")
		s.data = make(map[string]string)
	}
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) SetMany(values map[string]string) error {
	return s.mutate(func(next map[string]string) {
		for k, v := range values {
			next[k] = v
		}
	})
}

func (s *Store) Delete(keys ...string) error {
	return s.mutate(func(next map[string]string) {
		for _, k := range keys {
			delete(next, k)
		}
	})
}

func (s *Store) DeletePrefix(prefix string) error {
	return s.mutate(func(next map[string]string) {
		for k := range next {
			if strings.HasPrefix(k, prefix) {
				delete(next, k)
			}
		}
	})
}

func (s *Store) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// mutate applies change to a copy of the data, persists the copy and only
// then swaps it in.
func (s *Store) mutate(change func(next map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.data))
	for k, v := range s.data {
		next[k] = v
	}
	change(next)

	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Store) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshaling document: %w", err)
	}
	raw = append(raw, '\n')

	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("filestore: creating directory %s: %w", directory, err)
	}

	tmp, err := os.CreateTemp(directory, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filestore: replacing %s: %w", s.path, err)
	}
	return nil
}
