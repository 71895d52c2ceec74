package secure

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for deriving the file encryption key from the
// passphrase. Fixed: changing them invalidates existing files.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	saltLength   = 16
)

// FileBackend is an encrypted file-backed Backend. The whole key-value map is
// sealed as a single XChaCha20-Poly1305 blob, so a torn write can never expose
// a half-updated store: either the previous blob or the new one is on disk.
//
// This is the library's default backend; platforms with a native keystore
// should implement Backend directly against it instead.
type FileBackend struct {
	path string
	key  []byte
	salt []byte

	mu     sync.Mutex
	values map[string]string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend opens (or creates) the encrypted store at path, deriving the
// encryption key from passphrase via Argon2id.
func NewFileBackend(path string, passphrase []byte) (*FileBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("secure store file path is required")
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("secure store passphrase is required")
	}

	b := &FileBackend{
		path:   path,
		values: make(map[string]string),
	}
	if err := b.load(passphrase); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, ok := b.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (b *FileBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, existed := b.values[key]
	b.values[key] = value
	if err := b.persistLocked(); err != nil {
		// Keep the in-memory map consistent with what is on disk.
		if existed {
			b.values[key] = previous
		} else {
			delete(b.values, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
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

func (b *FileBackend) load(passphrase []byte) error {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			salt := make([]byte, saltLength)
			if _, err := rand.Read(salt); err != nil {
				return fmt.Errorf("generate secure store salt: %w", err)
			}
			b.salt = salt
			b.key = deriveKey(passphrase, salt)
			return nil
		}
		return fmt.Errorf("read secure store file: %w", err)
	}

	if len(raw) < saltLength+chacha20poly1305.NonceSizeX {
		return fmt.Errorf("secure store file truncated")
	}
	b.salt = raw[:saltLength]
	b.key = deriveKey(passphrase, b.salt)

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return fmt.Errorf("init secure store cipher: %w", err)
	}
	nonce := raw[saltLength : saltLength+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, raw[saltLength+chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return fmt.Errorf("decrypt secure store file: %w", err)
	}
	if err := json.Unmarshal(plaintext, &b.values); err != nil {
		return fmt.Errorf("decode secure store file: %w", err)
	}
	return nil
}

func (b *FileBackend) persistLocked() error {
	plaintext, err := json.Marshal(b.values)
	if err != nil {
		return fmt.Errorf("encode secure store: %w", err)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return fmt.Errorf("init secure store cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate secure store nonce: %w", err)
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, b.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)

	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("mkdir secure store dir: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write secure store file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace secure store file: %w", err)
	}
	return nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
