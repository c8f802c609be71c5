//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// xdgPath joins name under $env/trackmatch, falling back to fallback under
// the home directory when env is unset.
func xdgPath(env, fallback, name string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("trackmatch-data", name)
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, "trackmatch", name)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "")
}

func tokenHint() string {
	return " or `trackmatch config set catalog.token <token>`"
}

// jsonFile is a flat JSON object persisted with owner-only permissions.
type jsonFile struct {
	path string
	data map[string]any
}

func openJSONFile(path string) *jsonFile {
	f := &jsonFile{path: path, data: make(map[string]any)}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(raw, &f.data); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s: %v. Using default values.\n", path, err)
		}
	}
	return f
}

func (f *jsonFile) set(key string, val any) error {
	f.data[key] = val
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(f.path), err)
	}
	out, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

// fileBackend keeps settings in $XDG_CONFIG_HOME/trackmatch/config.json.
type fileBackend struct {
	file *jsonFile
}

func newPlatformBackend() Backend {
	return &fileBackend{file: openJSONFile(xdgPath("XDG_CONFIG_HOME", ".config", "config.json"))}
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.file.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

// GetInt accepts JSON numbers and numeric strings, since hand-edited files
// often quote values.
func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.file.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || val < math.MinInt || val > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
	}
}

func (b *fileBackend) SetString(key, val string) error  { return b.file.set(key, val) }
func (b *fileBackend) SetInt(key string, val int) error { return b.file.set(key, val) }
