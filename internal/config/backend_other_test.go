//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	b := newPlatformBackend()
	if err := b.SetInt("server.port", 4200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("catalog.market", "DE"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "trackmatch", "config.json"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	reopened := newPlatformBackend()
	if port, ok, err := reopened.GetInt("server.port"); err != nil || !ok || port != 4200 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	if market, ok, _ := reopened.GetString("catalog.market"); !ok || market != "DE" {
		t.Errorf("GetString = %q, %v", market, ok)
	}
	if _, ok, _ := reopened.GetString("missing"); ok {
		t.Error("missing key reported as present")
	}
}

func TestFileBackend_GetIntFromHandEditedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "trackmatch", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	content := `{"server.port": "5000", "catalog.limit": 2.5, "cache.ttl": true}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newPlatformBackend()
	if v, _, err := b.GetInt("server.port"); err != nil || v != 5000 {
		t.Errorf("quoted int = %d, %v", v, err)
	}
	if _, ok, err := b.GetInt("catalog.limit"); !ok || err == nil {
		t.Error("expected error for fractional value")
	}
	if _, ok, err := b.GetInt("cache.ttl"); !ok || err == nil {
		t.Error("expected error for bool value")
	}
}

func TestSecretsFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := keychainGet(keychainService, catalogTokenAccount); err == nil {
		t.Fatal("expected error before any secret is stored")
	}
	if err := keychainSet(keychainService, catalogTokenAccount, "s3cret"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	got, err := NewKeychain().Get(keychainService, catalogTokenAccount)
	if err != nil || got != "s3cret" {
		t.Errorf("Get = %q, %v", got, err)
	}
}
