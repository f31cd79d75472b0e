package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "pagebuilder"

// errItemNotFound is the exit code of `security` for a missing item.
const errItemNotFound = 44

// KeychainStore implements SecretStore on the macOS login keychain through
// the `security` CLI.
type KeychainStore struct{}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

// Set stores value under key, replacing any previous value.
func (k *KeychainStore) Set(key string, value []byte) error {
	_ = k.Delete(key)

	out, err := exec.Command("security", "add-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", string(value),
		"-U",
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("keychain set %s: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w",
	).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == errItemNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes key. A missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	err := exec.Command("security", "delete-generic-password",
		"-a", key,
		"-s", keychainService,
	).Run()
	var exitErr *exec.ExitError
	if err == nil || (errors.As(err, &exitErr) && exitErr.ExitCode() == errItemNotFound) {
		return nil
	}
	return fmt.Errorf("keychain delete %s: %w", key, err)
}
