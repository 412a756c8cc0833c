package secret

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists credentials as a JSON object in a mode-0600 file.
// Keys are "service/account" pairs.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store at path. The file and its
// parent directory are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get reads a credential from the file.
func (s *FileStore) Get(service, account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := creds[credKey(service, account)]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set writes a credential to the file.
func (s *FileStore) Set(service, account, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	creds[credKey(service, account)] = value
	return s.save(creds)
}

// Delete removes a credential from the file.
func (s *FileStore) Delete(service, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	key := credKey(service, account)
	if _, ok := creds[key]; !ok {
		return ErrNotFound
	}
	delete(creds, key)
	return s.save(creds)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	creds := map[string]string{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", s.path, err)
	}
	return creds, nil
}

func (s *FileStore) save(creds map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

func credKey(service, account string) string {
	return service + "/" + account
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
