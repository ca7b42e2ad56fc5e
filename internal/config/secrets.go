package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the secret named by envName.
// NAME_FILE, when set, names a file whose trimmed contents win over NAME.
// An unset secret resolves to "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := os.Getenv(fileEnv)
	if path == "" {
		return os.Getenv(envName), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", fileEnv, err)
	}
	return strings.TrimSpace(string(b)), nil
}
