package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// SecretStore keeps small sensitive values such as the tenant session
// token. Get returns a nil slice and nil error for a missing key.
type SecretStore interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore keeps one 0600 file per key under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	return filepath.Join(f.dir, key), nil
}

func (f *FileStore) Set(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("secret dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("secret set: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("secret set: %w", err)
	}
	return nil
}

func (f *FileStore) Get(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secret get: %w", err)
	}
	return b, nil
}

func (f *FileStore) Delete(key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("secret delete: %w", err)
	}
	return nil
}

// New returns the store for backend: "keychain" or "file" (the default).
func New(backend, dir string) SecretStore {
	if backend == "keychain" {
		return NewKeychainStore()
	}
	return NewFileStore(dir)
}
