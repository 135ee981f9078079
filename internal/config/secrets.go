package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretMissing is returned when the secret file does not exist.
var ErrSecretMissing = errors.New("secret file not found")

// SecretReader reads Docker-style secrets from a directory.
type SecretReader struct {
	dir string
}

func NewSecretReader(dir string) *SecretReader {
	return &SecretReader{dir: dir}
}

// Read returns the trimmed contents of dir/name. There is no fallback to
// environment variables.
func (r *SecretReader) Read(name string) (string, error) {
	filePath := filepath.Join(r.dir, name)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretMissing, filePath)
		}
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
