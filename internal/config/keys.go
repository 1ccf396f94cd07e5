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
	key    string
	typ    keyType
	env    string
	secret bool
	// account is the entry name in the secrets file.
	account string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "DISHCOVER_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "DISHCOVER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DISHCOVER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "DISHCOVER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "places.base_url", typ: kString, env: "DISHCOVER_PLACES_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Places.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Places.BaseURL },
	},
	{
		key: "places.api_key", typ: kString, env: "DISHCOVER_PLACES_API_KEY",
		secret: true, account: "places_api_key",
		apply:   func(cfg *Config, v any) { cfg.Places.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Places.APIKey },
	},
	{
		key: "places.timeout", typ: kDuration, env: "DISHCOVER_PLACES_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Places.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Places.Timeout },
	},
	{
		key: "generator.backend", typ: kString, env: "DISHCOVER_GENERATOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Generator.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.Backend },
	},
	{
		key: "generator.model", typ: kString, env: "DISHCOVER_GENERATOR_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generator.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.Model },
	},
	{
		key: "generator.openrouter_api_key", typ: kString, env: "DISHCOVER_OPENROUTER_API_KEY",
		secret: true, account: "openrouter_api_key",
		apply:   func(cfg *Config, v any) { cfg.Generator.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.OpenRouterAPIKey },
	},
	{
		key: "generator.openrouter_base_url", typ: kString, env: "DISHCOVER_OPENROUTER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Generator.OpenRouterBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.OpenRouterBaseURL },
	},
	{
		key: "generator.ollama_base_url", typ: kString, env: "DISHCOVER_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Generator.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.OllamaBaseURL },
	},
	{
		key: "generator.max_tokens", typ: kInt, env: "DISHCOVER_GENERATOR_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generator.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generator.MaxTokens },
	},
	{
		key: "auth.session_secret", typ: kString, env: "DISHCOVER_SESSION_SECRET",
		secret: true, account: "session_secret",
		apply:   func(cfg *Config, v any) { cfg.Auth.SessionSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.SessionSecret },
	},
	{
		key: "auth.cookie_name", typ: kString, env: "DISHCOVER_AUTH_COOKIE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Auth.CookieName = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.CookieName },
	},
	{
		key: "recommend.min_interactions", typ: kInt, env: "DISHCOVER_RECOMMEND_MIN_INTERACTIONS",
		apply:   func(cfg *Config, v any) { cfg.Recommend.MinInteractions = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.MinInteractions },
	},
	{
		key: "recommend.history_limit", typ: kInt, env: "DISHCOVER_RECOMMEND_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Recommend.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.HistoryLimit },
	},
	{
		key: "recommend.concurrency", typ: kInt, env: "DISHCOVER_RECOMMEND_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.Concurrency },
	},
	{
		key: "recommend.default_limit", typ: kInt, env: "DISHCOVER_RECOMMEND_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Recommend.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.DefaultLimit },
	},
	{
		key: "recommend.matcher", typ: kString, env: "DISHCOVER_RECOMMEND_MATCHER",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Matcher = v.(string) },
		extract: func(cfg Config) any { return cfg.Recommend.Matcher },
	},
	{
		key: "recommend.rate_limit", typ: kInt, env: "DISHCOVER_RECOMMEND_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Recommend.RateLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.RateLimit },
	},
	{
		key: "recommend.rate_window", typ: kDuration, env: "DISHCOVER_RECOMMEND_RATE_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Recommend.RateWindow = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Recommend.RateWindow },
	},
	{
		key: "cache.place_ttl", typ: kDuration, env: "DISHCOVER_CACHE_PLACE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.PlaceTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.PlaceTTL },
	},
	{
		key: "cache.search_ttl", typ: kDuration, env: "DISHCOVER_CACHE_SEARCH_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.SearchTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.SearchTTL },
	},
	{
		key: "cache.coalesce_linger", typ: kDuration, env: "DISHCOVER_CACHE_COALESCE_LINGER",
		apply:   func(cfg *Config, v any) { cfg.Cache.CoalesceLinger = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.CoalesceLinger },
	},
	{
		key: "mcp.enabled", typ: kBool, env: "DISHCOVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.MCP.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Enabled },
	},
	{
		key: "mcp.user_id", typ: kString, env: "DISHCOVER_MCP_USER_ID",
		apply:   func(cfg *Config, v any) { cfg.MCP.UserID = v.(string) },
		extract: func(cfg Config) any { return cfg.MCP.UserID },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts a raw string into the Go value for the key's type.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
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

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
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
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// applySecrets fills secrets still empty after env overrides from the
// secrets store.
func applySecrets(cfg *Config, ss secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := ss.Get(s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
