package securefakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/storage/secure"
)

var _ secure.Backend = (*FakeBackend)(nil)

// FakeBackend is an in-memory secure.Backend with per-key error injection and
// call counting, for exercising the adapter contracts and rollback paths.
type FakeBackend struct {
	lock   sync.Mutex
	values map[string]string

	GetErrs    map[string]error // key -> error returned by Get
	SetErrs    map[string]error // key -> error returned by Set
	DeleteErrs map[string]error // key -> error returned by Delete

	GetCalls    int
	SetCalls    int
	DeleteCalls int
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		values:     make(map[string]string),
		GetErrs:    make(map[string]error),
		SetErrs:    make(map[string]error),
		DeleteErrs: make(map[string]error),
	}
}

func (b *FakeBackend) Get(_ context.Context, key string) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.GetCalls++
	if err := b.GetErrs[key]; err != nil {
		return "", err
	}
	value, ok := b.values[key]
	if !ok {
		return "", secure.ErrNotFound
	}
	return value, nil
}

func (b *FakeBackend) Set(_ context.Context, key, value string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.SetCalls++
	if err := b.SetErrs[key]; err != nil {
		return err
	}
	b.values[key] = value
	return nil
}

func (b *FakeBackend) Delete(_ context.Context, key string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.DeleteCalls++
	if err := b.DeleteErrs[key]; err != nil {
		return err
	}
	delete(b.values, key)
	return nil
}

// Seed stores a value directly, bypassing error injection.
func (b *FakeBackend) Seed(key, value string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.values[key] = value
}

// Value returns the stored value and whether it exists, bypassing error injection.
func (b *FakeBackend) Value(key string) (string, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	value, ok := b.values[key]
	return value, ok
}
