package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"unifi-report/internal/encryption"
)

func TestResolveLiteral(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		ref  string
		want string
	}{
		{"plain-password", "plain-password"},
		{"", ""},
		{"with:colon:inside", "with:colon:inside"}, // unknown scheme stays literal
	}

	for _, tt := range tests {
		got, err := r.Resolve(tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("UNIFI_TEST_SECRET", "from-env")
	r := NewResolver(nil)

	got, err := r.Resolve("env:UNIFI_TEST_SECRET")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "from-env" {
		t.Errorf("Resolve = %q, want from-env", got)
	}

	if _, err := r.Resolve("env:UNIFI_TEST_SECRET_MISSING"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("missing env var error = %v, want ErrSecretNotFound", err)
	}
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "password")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(nil)
	got, err := r.Resolve("file:" + path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "from-file" {
		t.Errorf("Resolve = %q, want from-file (trailing newline trimmed)", got)
	}

	if _, err := r.Resolve("file:" + filepath.Join(dir, "missing")); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("missing file error = %v, want ErrSecretNotFound", err)
	}
}

func TestResolveEncrypted(t *testing.T) {
	engine, err := encryption.NewEngine("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := engine.EncryptString("controller-password")
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(engine)
	got, err := r.Resolve("enc:" + sealed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "controller-password" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolveEncryptedWithoutEngine(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.Resolve("enc:abc"); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("error = %v, want ErrNoPassphrase", err)
	}
}

func TestResolveAll(t *testing.T) {
	t.Setenv("UNIFI_TEST_SECRET", "from-env")
	r := NewResolver(nil)

	password := "env:UNIFI_TEST_SECRET"
	literal := "unchanged"
	empty := ""

	if err := r.ResolveAll(&password, &literal, &empty, nil); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if password != "from-env" || literal != "unchanged" || empty != "" {
		t.Errorf("resolved values = %q, %q, %q", password, literal, empty)
	}

	bad := "env:UNIFI_TEST_SECRET_MISSING"
	if err := r.ResolveAll(&bad); err == nil {
		t.Error("ResolveAll must surface resolution failures")
	}
}
