package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	keychainService       = "trackmatch"
	catalogTokenAccount   = "catalog_token"
	catalogTokenEnv       = "TRACKMATCH_CATALOG_TOKEN"
	defaultCatalogBaseURL = "https://api.spotify.com/v1"
)

// ErrMissingCatalogToken is returned by Validate when no catalog token was
// found in the environment or the secrets store.
var ErrMissingCatalogToken = errors.New("missing required config: catalog token")

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Catalog  CatalogConfig
	Cache    CacheConfig
	Limiter  LimiterConfig
	Matching MatchingConfig
	Ollama   OllamaConfig
	Cleanup  CleanupConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type CatalogConfig struct {
	BaseURL string
	Token   string
	Market  string
	Limit   int
}

type CacheConfig struct {
	TTL time.Duration
}

type LimiterConfig struct {
	MaxConcurrent   int
	MinTime         time.Duration
	Reservoir       int
	RefreshInterval time.Duration
}

type MatchingConfig struct {
	AutoAccept int
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type CleanupConfig struct {
	Enabled bool
	Timeout time.Duration
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4100},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
		Catalog: CatalogConfig{
			BaseURL: defaultCatalogBaseURL,
			Limit:   20,
		},
		Cache: CacheConfig{TTL: 30 * 24 * time.Hour},
		Limiter: LimiterConfig{
			MaxConcurrent:   3,
			MinTime:         100 * time.Millisecond,
			Reservoir:       30,
			RefreshInterval: 10 * time.Second,
		},
		Matching: MatchingConfig{AutoAccept: 90},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Cleanup: CleanupConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.trackmatch.app) and the
// catalog token falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/trackmatch/config.json
// and the token falls back to a secrets file under $XDG_DATA_HOME/trackmatch.
//
// Environment variables (TRACKMATCH_*) override backend values on all platforms.
// Load does not require the catalog token; callers that talk to the catalog
// call Validate.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// Keychain abstracts the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain {
	return platformKeychain{}
}

func loadWith(b Backend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Catalog.Token == "" && kc != nil {
		if tok, err := kc.Get(keychainService, catalogTokenAccount); err == nil && tok != "" {
			cfg.Catalog.Token = tok
		}
	}

	return cfg, nil
}

// Validate checks the settings the daemon cannot run without.
func (c Config) Validate() error {
	if c.Catalog.Token == "" {
		return fmt.Errorf("%w. Set it via environment variable %s%s",
			ErrMissingCatalogToken, catalogTokenEnv, tokenHint())
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Matching.AutoAccept < 0 || c.Matching.AutoAccept > 100 {
		return fmt.Errorf("matching.auto_accept %d must be within 0..100", c.Matching.AutoAccept)
	}
	if c.Limiter.MaxConcurrent < 0 || c.Limiter.Reservoir < 0 {
		return fmt.Errorf("limiter settings must not be negative")
	}
	return nil
}

// platformKeychain reads and writes the OS secret store.
type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
