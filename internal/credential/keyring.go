// Package credential resolves secrets that are not stored in the config file.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

// Store reads and writes secrets by key
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// KeyringStore is a Store backed by the operating system keyring
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store scoped to the given keyring service name
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// openKeyring returns a configured keyring instance
func (s *KeyringStore) openKeyring() (keyring.Keyring, error) {
	home, _ := os.UserHomeDir()
	ring, err := keyring.Open(keyring.Config{
		ServiceName: s.service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(home, ".config", s.service, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt(s.service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key
func (s *KeyringStore) Get(key string) (string, error) {
	ring, err := s.openKeyring()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key
func (s *KeyringStore) Set(key, value string) error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Resolve returns the configured value when present and falls back to the
// store otherwise. A missing key is reported with the key name so operators
// know what to add.
func Resolve(store Store, configured, key string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if store == nil {
		return "", fmt.Errorf("credential %q not configured", key)
	}
	value, err := store.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("credential %q not configured and not found in keyring", key)
		}
		return "", err
	}
	return value, nil
}

// MailboxPasswordKey is the keyring key for an account's password
func MailboxPasswordKey(account string) string {
	return "mailbox/" + account + "/password"
}

// ChannelTokenKey is the keyring key for an alert channel's token
func ChannelTokenKey(channel string) string {
	return "notify/" + channel + "/token"
}
