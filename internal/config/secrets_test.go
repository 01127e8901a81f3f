package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	return path
}

func TestResolveSecret(t *testing.T) {
	const name = "SIGNALGRID_TEST_SECRET"
	tests := []struct {
		name string
		env  string
		file string
		want string
	}{
		{"neither set", "", "", ""},
		{"env only", "env-value", "", "env-value"},
		{"file only", "", "file-value\n", "file-value"},
		{"file wins over env", "env-value", "  file-value  ", "file-value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(name, tt.env)
			t.Setenv(name+"_FILE", "")
			if tt.file != "" {
				t.Setenv(name+"_FILE", writeSecret(t, tt.file))
			}
			got, err := ResolveSecret(name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSecretMissingFile(t *testing.T) {
	const name = "SIGNALGRID_TEST_MISSING"
	missing := filepath.Join(t.TempDir(), "nope")
	t.Setenv(name+"_FILE", missing)
	_, err := ResolveSecret(name)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error should name the path: %v", err)
	}
}
