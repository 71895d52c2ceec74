package fastcache

import "sync"

// MemoryBackend is a process-local Backend. Contents do not survive a
// restart, so sessions stored through it behave as if the user always starts
// logged out. Useful for tests and for platforms without a writable cache dir.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
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

func (b *MemoryBackend) Set(key string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(raw))
	copy(stored, raw)
	b.values[key] = stored
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}
