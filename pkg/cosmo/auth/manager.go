package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	tokenStoreFile     = "file"
	tokenStoreKeychain = "keychain"

	keyringService = "cosmo-cli"
	keyringUser    = "token"
)

// TokenManager persists the bearer token either in a JSON file at CachePath
// or in the OS keychain.
type TokenManager struct {
	CachePath   string
	StorageMode string
}

func (m *TokenManager) mode() (string, error) {
	switch m.StorageMode {
	case "", tokenStoreFile:
		return tokenStoreFile, nil
	case tokenStoreKeychain:
		return tokenStoreKeychain, nil
	default:
		return "", fmt.Errorf("unsupported token storage: %s", m.StorageMode)
	}
}

// GetToken returns the stored token. A missing or unreadable token file is
// reported as not found so the caller falls back to logging in.
func (m *TokenManager) GetToken() (string, bool, error) {
	mode, err := m.mode()
	if err != nil {
		return "", false, err
	}
	if mode == tokenStoreKeychain {
		token, err := keyring.Get(keyringService, keyringUser)
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to read token from keychain: %w", err)
		}
		return token, token != "", nil
	}
	tf, err := LoadTokenFile(m.CachePath)
	if err != nil {
		return "", false, nil
	}
	return tf.Token, tf.Token != "", nil
}

func (m *TokenManager) SaveToken(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	mode, err := m.mode()
	if err != nil {
		return err
	}
	if mode == tokenStoreKeychain {
		if err := keyring.Set(keyringService, keyringUser, token); err != nil {
			return fmt.Errorf("failed to save token in keychain: %w", err)
		}
		return nil
	}
	return SaveTokenFile(m.CachePath, &TokenFile{Token: token})
}

// DeleteToken removes the stored token. Deleting a token that does not exist
// is not an error.
func (m *TokenManager) DeleteToken() error {
	mode, err := m.mode()
	if err != nil {
		return err
	}
	if mode == tokenStoreKeychain {
		err := keyring.Delete(keyringService, keyringUser)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete token from keychain: %w", err)
		}
		return nil
	}
	if err := os.Remove(m.CachePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// Location describes where the token lives, for status output.
func (m *TokenManager) Location() string {
	if mode, _ := m.mode(); mode == tokenStoreKeychain {
		return "keychain:" + keyringService
	}
	return m.CachePath
}
