package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func clearAuthEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SIGNALGRID_ADMIN_USER", "SIGNALGRID_ADMIN_PASS",
		"SIGNALGRID_OPERATOR_USER", "SIGNALGRID_OPERATOR_PASS",
	} {
		t.Setenv(name, "")
		t.Setenv(name+"_FILE", "")
	}
	t.Cleanup(func() { auth = nil })
}

func TestInitAuthDisabledWithoutAdmin(t *testing.T) {
	clearAuthEnv(t)
	t.Setenv("SIGNALGRID_OPERATOR_USER", "op")
	t.Setenv("SIGNALGRID_OPERATOR_PASS", "pw")
	if err := InitAuth(); err != nil {
		t.Fatal(err)
	}
	if IsAuthEnabled() {
		t.Error("auth needs admin credentials to be enabled")
	}
}

func TestInitAuthFromFiles(t *testing.T) {
	clearAuthEnv(t)
	dir := t.TempDir()
	pass := filepath.Join(dir, "admin_pass")
	if err := os.WriteFile(pass, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGNALGRID_ADMIN_USER", "admin")
	t.Setenv("SIGNALGRID_ADMIN_PASS_FILE", pass)
	if err := InitAuth(); err != nil {
		t.Fatal(err)
	}
	if !IsAuthEnabled() || auth.adminPass != "s3cret" {
		t.Errorf("expected trimmed password from file, got %+v", auth)
	}
}

func TestInitAuthMissingFile(t *testing.T) {
	clearAuthEnv(t)
	t.Setenv("SIGNALGRID_ADMIN_PASS_FILE", filepath.Join(t.TempDir(), "missing"))
	if err := InitAuth(); err == nil {
		t.Error("expected an error for an unreadable secret file")
	}
}

func TestRequireRole(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	auth = &authConfig{adminUser: "admin", adminPass: "adminpass", operatorUser: "op", operatorPass: "oppass", enabled: true}
	t.Cleanup(func() { auth = nil })

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		user     string
		pass     string
		noAuth   bool
		wantCode int
	}{
		{"admin on admin route", RequireAdmin(ok), "admin", "adminpass", false, http.StatusOK},
		{"operator on admin route", RequireAdmin(ok), "op", "oppass", false, http.StatusForbidden},
		{"operator on operator route", RequireAnyRole(ok), "op", "oppass", false, http.StatusOK},
		{"admin on operator route", RequireAnyRole(ok), "admin", "adminpass", false, http.StatusOK},
		{"wrong password", RequireAnyRole(ok), "admin", "nope", false, http.StatusUnauthorized},
		{"no credentials", RequireAnyRole(ok), "", "", true, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			tt.handler(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") != `Basic realm="SignalGrid"` {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAuthDisabledGrantsAdmin(t *testing.T) {
	auth = nil
	if role := authenticate(httptest.NewRequest("GET", "/", nil)); role != RoleAdmin {
		t.Errorf("expected admin when auth is disabled, got %q", role)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") || secureCompare("abc", "abd") || secureCompare("abc", "ab") {
		t.Error("secureCompare mismatch")
	}
}
