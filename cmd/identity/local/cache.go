package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenCache remembers the provider's current access token between runs.
// Load returns "" when nothing is cached.
type TokenCache interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenCache stores the token in a single 0600 file.
type FileTokenCache struct {
	path string
}

// NewFileTokenCache constructs a FileTokenCache at path.
func NewFileTokenCache(path string) (*FileTokenCache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("local: empty token cache path")
	}
	return &FileTokenCache{path: filepath.Clean(path)}, nil
}

func (c *FileTokenCache) Load() (string, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (c *FileTokenCache) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *FileTokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenCache keeps the token for the lifetime of the process only.
type MemoryTokenCache struct {
	mu    sync.Mutex
	token string
}

func (c *MemoryTokenCache) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *MemoryTokenCache) Save(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return nil
}

func (c *MemoryTokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return nil
}
