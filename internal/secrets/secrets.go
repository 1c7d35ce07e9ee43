// Package secrets resolves store credentials from config, files or the OS keychain.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the app's secrets in the OS keychain.
	KeyringService = "jobdedup"
)

// ErrNotFound is returned when no source holds the secret.
var ErrNotFound = errors.New("secret not found")

// Ref points at a secret. The first non-empty source wins: Value, File, then
// KeyringAccount.
type Ref struct {
	Value          string `mapstructure:"value" json:"value,omitempty" yaml:"value,omitempty"`
	File           string `mapstructure:"file" json:"file,omitempty" yaml:"file,omitempty"`
	KeyringAccount string `mapstructure:"keyring_account" json:"keyring_account,omitempty" yaml:"keyring_account,omitempty"`
}

// IsZero reports whether the ref names no source at all.
func (r Ref) IsZero() bool {
	return strings.TrimSpace(r.Value) == "" &&
		strings.TrimSpace(r.File) == "" &&
		strings.TrimSpace(r.KeyringAccount) == ""
}

// Resolve returns the secret value.
func Resolve(r Ref) (string, error) {
	if v := strings.TrimSpace(r.Value); v != "" {
		return v, nil
	}

	if path := strings.TrimSpace(r.File); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret file: %w", err)
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("secret file %s is empty: %w", path, ErrNotFound)
	}

	if account := strings.TrimSpace(r.KeyringAccount); account != "" {
		v, err := keyring.Get(KeyringService, account)
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keyring account %s: %w", account, ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("keyring: %w", err)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}

	return "", ErrNotFound
}

// Set stores a secret in the keychain under account.
func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

// Delete removes a secret from the keychain.
func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if err := keyring.Delete(KeyringService, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring account %s: %w", account, ErrNotFound)
		}
		return err
	}
	return nil
}
