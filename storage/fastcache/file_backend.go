package fastcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend is a JSON file-backed Backend. The whole map is rewritten on
// every mutation; values are opaque raw JSON so a corrupt individual entry
// still loads and is left for the Cache layer to self-heal on read.
type FileBackend struct {
	path string

	mu     sync.RWMutex
	values map[string]json.RawMessage
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend opens (or creates) the cache file at path.
func NewFileBackend(path string) (*FileBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("fast cache file path is required")
	}

	b := &FileBackend{
		path:   path,
		values: make(map[string]json.RawMessage),
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	raw, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

func (b *FileBackend) Set(key string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, existed := b.values[key]
	stored := make(json.RawMessage, len(raw))
	copy(stored, raw)
	b.values[key] = stored
	if err := b.persistLocked(); err != nil {
		if existed {
			b.values[key] = previous
		} else {
			delete(b.values, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, existed := b.values[key]
	if !existed {
		return nil
	}
	delete(b.values, key)
	if err := b.persistLocked(); err != nil {
		b.values[key] = previous
		return err
	}
	return nil
}

func (b *FileBackend) load() error {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read fast cache file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &b.values); err != nil {
		// An unreadable cache file is recoverable state, not a fatal
		// condition: start empty, same as a fresh install.
		b.values = make(map[string]json.RawMessage)
	}
	return nil
}

func (b *FileBackend) persistLocked() error {
	raw, err := json.Marshal(b.values)
	if err != nil {
		return fmt.Errorf("encode fast cache file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("mkdir fast cache dir: %w", err)
	}
	if err := os.WriteFile(b.path, raw, 0o644); err != nil {
		return fmt.Errorf("write fast cache file: %w", err)
	}
	return nil
}
