package cachefakes

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/storage/fastcache"
)

var _ fastcache.Backend = (*FakeBackend)(nil)

// FakeBackend is an in-memory fastcache.Backend with per-key error injection,
// for exercising the adapter contracts and the engine's rollback paths.
type FakeBackend struct {
	lock   sync.Mutex
	values map[string][]byte

	GetErrs    map[string]error // key -> error returned by Get
	SetErrs    map[string]error // key -> error returned by Set
	DeleteErrs map[string]error // key -> error returned by Delete
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		values:     make(map[string][]byte),
		GetErrs:    make(map[string]error),
		SetErrs:    make(map[string]error),
		DeleteErrs: make(map[string]error),
	}
}

func (b *FakeBackend) Get(key string) ([]byte, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if err := b.GetErrs[key]; err != nil {
		return nil, false, err
	}
	raw, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

func (b *FakeBackend) Set(key string, raw []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if err := b.SetErrs[key]; err != nil {
		return err
	}
	stored := make([]byte, len(raw))
	copy(stored, raw)
	b.values[key] = stored
	return nil
}

func (b *FakeBackend) Delete(key string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if err := b.DeleteErrs[key]; err != nil {
		return err
	}
	delete(b.values, key)
	return nil
}

// Seed stores raw bytes directly, bypassing error injection. Useful for
// planting deliberately corrupt entries.
func (b *FakeBackend) Seed(key string, raw []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.values[key] = raw
}

// Has reports whether a value exists for key, bypassing error injection.
func (b *FakeBackend) Has(key string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	_, ok := b.values[key]
	return ok
}
