package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Area is a key/value storage area. Implementations must be safe for
// concurrent use.
type Area interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// MemoryArea is a session-scoped area: it lives exactly as long as the
// process that created it.
type MemoryArea struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryArea creates an empty session-scoped area.
func NewMemoryArea() *MemoryArea {
	return &MemoryArea{values: make(map[string]string)}
}

func (m *MemoryArea) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryArea) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryArea) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileArea is a persistent area backed by a single JSON document.
//
// The file is re-read on every Get so that several client processes sharing
// a home directory observe each other's logins and logouts.
type FileArea struct {
	path string
	mu   sync.Mutex
}

// NewFileArea returns a persistent area stored at path. The file and its
// parent directory are created lazily on first write.
func NewFileArea(path string) (*FileArea, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage file path is required")
	}
	return &FileArea{path: path}, nil
}

// Path returns the backing file location.
func (f *FileArea) Path() string {
	return f.path
}

func (f *FileArea) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.loadLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileArea) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.loadLocked()
	if err != nil {
		return err
	}
	values[key] = value
	return f.persistLocked(values)
}

func (f *FileArea) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.persistLocked(values)
}

func (f *FileArea) loadLocked() (map[string]string, error) {
	values := make(map[string]string)

	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}
	return values, nil
}

func (f *FileArea) persistLocked(values map[string]string) error {
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("mkdir storage dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
