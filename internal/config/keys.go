package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TRACKMATCH_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TRACKMATCH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "TRACKMATCH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "catalog.base_url", typ: kString, env: "TRACKMATCH_CATALOG_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.BaseURL },
	},
	{
		key: "catalog.token", typ: kString, env: catalogTokenEnv,
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Catalog.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Token },
	},
	{
		key: "catalog.market", typ: kString, env: "TRACKMATCH_CATALOG_MARKET",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Market = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Market },
	},
	{
		key: "catalog.limit", typ: kInt, env: "TRACKMATCH_CATALOG_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Limit = v.(int) },
		extract: func(cfg Config) any { return cfg.Catalog.Limit },
	},
	{
		key: "cache.ttl", typ: kDuration, env: "TRACKMATCH_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.TTL },
	},
	{
		key: "limiter.max_concurrent", typ: kInt, env: "TRACKMATCH_LIMITER_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.Limiter.MaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.Limiter.MaxConcurrent },
	},
	{
		key: "limiter.min_time", typ: kDuration, env: "TRACKMATCH_LIMITER_MIN_TIME",
		apply:   func(cfg *Config, v any) { cfg.Limiter.MinTime = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Limiter.MinTime },
	},
	{
		key: "limiter.reservoir", typ: kInt, env: "TRACKMATCH_LIMITER_RESERVOIR",
		apply:   func(cfg *Config, v any) { cfg.Limiter.Reservoir = v.(int) },
		extract: func(cfg Config) any { return cfg.Limiter.Reservoir },
	},
	{
		key: "limiter.refresh_interval", typ: kDuration, env: "TRACKMATCH_LIMITER_REFRESH_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Limiter.RefreshInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Limiter.RefreshInterval },
	},
	{
		key: "matching.auto_accept", typ: kInt, env: "TRACKMATCH_MATCHING_AUTO_ACCEPT",
		apply:   func(cfg *Config, v any) { cfg.Matching.AutoAccept = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.AutoAccept },
	},
	{
		key: "ollama.base_url", typ: kString, env: "TRACKMATCH_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "TRACKMATCH_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "cleanup.enabled", typ: kBool, env: "TRACKMATCH_CLEANUP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Cleanup.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Cleanup.Enabled },
	},
	{
		key: "cleanup.timeout", typ: kDuration, env: "TRACKMATCH_CLEANUP_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Cleanup.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cleanup.Timeout },
	},
}

// parseValue converts a raw string to the Go type of the key.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			raw, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || (raw == "" && s.typ != kString) {
				continue
			}
			v, err := parseValue(s.typ, raw)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
				continue
			}
			s.apply(cfg, v)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
