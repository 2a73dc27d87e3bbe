package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups this app's secrets in the OS keychain.
const KeyringService = "boardwatch"

// Lookup resolves a secret: OS keyring first (when an account name is
// configured), then the named environment variable. Empty result with a
// nil error means the secret is simply not set.
func Lookup(keyringAccount, envVar string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		val, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(val) != "" {
			return val, nil
		}
	}
	if envVar != "" {
		if val := strings.TrimSpace(os.Getenv(envVar)); val != "" {
			return val, nil
		}
	}
	return "", nil
}

// Store writes a secret to the OS keyring under the given account.
func Store(keyringAccount, value string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return fmt.Errorf("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("secret value is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, value)
}

// Delete removes a secret from the OS keyring.
func Delete(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return fmt.Errorf("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}
