package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads envName using the *_FILE convention: when
// envName_FILE is set the secret is read from that path and trimmed,
// otherwise the plain variable is used. Neither set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if path := os.Getenv(fileEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			// The path is reported, never the content.
			return "", fmt.Errorf("read secret %s=%s: %w", fileEnv, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}
