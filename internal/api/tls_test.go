package api

import (
	"os"
	"path/filepath"
	"testing"
)

func clearTLSEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"SIGNALGRID_TLS_CERT", "SIGNALGRID_TLS_KEY", "SIGNALGRID_TLS_CERT_FILE", "SIGNALGRID_TLS_KEY_FILE"} {
		t.Setenv(name, "")
	}
	SetTLSConfigForTest(nil)
}

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name    string
		cert    string
		key     string
		enabled bool
	}{
		{"no env vars", "", "", false},
		{"only cert", "/path/to/cert.pem", "", false},
		{"only key", "", "/path/to/key.pem", false},
		{"both set", "/path/to/cert.pem", "/path/to/key.pem", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTLSEnv(t)
			t.Setenv("SIGNALGRID_TLS_CERT", tt.cert)
			t.Setenv("SIGNALGRID_TLS_KEY", tt.key)
			if err := InitTLS(); err != nil {
				t.Fatal(err)
			}
			if IsTLSEnabled() != tt.enabled {
				t.Errorf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tt.enabled)
			}
			if tt.enabled && GetTLSConfig().CertFile != tt.cert {
				t.Errorf("CertFile = %q, want %q", GetTLSConfig().CertFile, tt.cert)
			}
		})
	}
}

func TestInitTLSFromFileVariant(t *testing.T) {
	clearTLSEnv(t)
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert-path")
	if err := os.WriteFile(certPath, []byte("/etc/grid/cert.pem\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGNALGRID_TLS_CERT_FILE", certPath)
	t.Setenv("SIGNALGRID_TLS_KEY", "/etc/grid/key.pem")
	if err := InitTLS(); err != nil {
		t.Fatal(err)
	}
	if !IsTLSEnabled() || GetTLSConfig().CertFile != "/etc/grid/cert.pem" {
		t.Errorf("expected cert path from file, got %+v", GetTLSConfig())
	}
}

func TestLoadTLSConfig(t *testing.T) {
	SetTLSConfigForTest(nil)
	cfg, err := LoadTLSConfig()
	if cfg != nil || err != nil {
		t.Error("LoadTLSConfig should return nil, nil when TLS is not enabled")
	}

	SetTLSConfigForTest(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	defer SetTLSConfigForTest(nil)
	if _, err := LoadTLSConfig(); err == nil {
		t.Error("LoadTLSConfig should fail when cert files don't exist")
	}
}
