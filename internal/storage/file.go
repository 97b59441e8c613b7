package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"socialfeed/internal/observability"
)

// FileStorage keeps every key in one JSON object on disk. Writes go to a
// temp file first and are renamed into place.
type FileStorage struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

var _ Storage = (*FileStorage)(nil)

func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{
		path: path,
		data: make(map[string]string),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStorage) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &s.data)
}

// caller holds s.mu
func (s *FileStorage) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		observability.StorageErrors.WithLabelValues("file", "write").Inc()
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		observability.StorageErrors.WithLabelValues("file", "rename").Inc()
		return err
	}
	return nil
}

func (s *FileStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.save()
}

func (s *FileStorage) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

func (s *FileStorage) Close() error {
	return nil
}
