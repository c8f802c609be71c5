//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.trackmatch.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "trackmatch-data"
	}
	return filepath.Join(home, "Library", "Application Support", "trackmatch")
}

func tokenHint() string {
	return " or macOS Keychain (service: " + keychainService + ", account: " + catalogTokenAccount + ")"
}

// defaultsBackend stores settings in the user defaults domain, so they can
// also be managed with `defaults write com.trackmatch.app <key> <value>`.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() Backend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", b.domain, key).CombinedOutput()
	val := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// Missing domain or key.
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("defaults read %s: %w: %s", key, err, val)
	}
	return val, true, nil
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return i, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b defaultsBackend) write(key, typ, val string) error {
	if out, err := exec.Command("defaults", "write", b.domain, key, typ, val).CombinedOutput(); err != nil {
		return fmt.Errorf("defaults write %s: %w: %s", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}
