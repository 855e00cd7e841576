package config

import (
	"fmt"
	"os"
	"strings"
)

const minSharedTokenLength = 16

// readSecretFromFile reads a secret from the given path.
// It trims whitespace and returns an error if the file cannot be read or is empty.
func readSecretFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file '%s': %w", path, err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file '%s' is empty", path)
	}

	return secret, nil
}

// ValidateSharedToken enforces basic strength rules for bearer tokens.
func ValidateSharedToken(name, token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return fmt.Errorf("CRITICAL: %s is required for token authentication", name)
	}

	if len(trimmed) < minSharedTokenLength {
		return fmt.Errorf("CRITICAL: %s must be at least %d characters (got %d)", name, minSharedTokenLength, len(trimmed))
	}

	return nil
}

// ValidateCredentials checks the username/password variant. Either a plain
// password or a bcrypt hash must be present.
func ValidateCredentials(username, password, passwordHash string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("CRITICAL: auth.username is required for password authentication")
	}
	if password == "" && passwordHash == "" {
		return fmt.Errorf("CRITICAL: auth.password or auth.password_hash is required for password authentication")
	}
	if passwordHash != "" && !strings.HasPrefix(passwordHash, "$2") {
		return fmt.Errorf("CRITICAL: auth.password_hash must be a bcrypt hash")
	}
	return nil
}
