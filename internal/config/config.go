package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	Places    PlacesConfig
	Generator GeneratorConfig
	Auth      AuthConfig
	Recommend RecommendConfig
	Cache     CacheConfig
	MCP       MCPConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type PlacesConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type GeneratorConfig struct {
	// Backend is "openrouter" or "ollama".
	Backend           string
	Model             string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OllamaBaseURL     string
	MaxTokens         int
}

type AuthConfig struct {
	SessionSecret string
	CookieName    string
}

type RecommendConfig struct {
	MinInteractions int
	HistoryLimit    int
	Concurrency     int
	DefaultLimit    int
	// Matcher is "scored" or "substring".
	Matcher    string
	RateLimit  int
	RateWindow time.Duration
}

type CacheConfig struct {
	PlaceTTL       time.Duration
	SearchTTL      time.Duration
	CoalesceLinger time.Duration
}

type MCPConfig struct {
	Enabled bool
	UserID  string
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Places: PlacesConfig{
			BaseURL: "https://places.googleapis.com/v1",
			Timeout: 10 * time.Second,
		},
		Generator: GeneratorConfig{
			Backend:           "openrouter",
			Model:             "anthropic/claude-3.5-sonnet",
			OpenRouterBaseURL: "https://openrouter.ai/api/v1",
			OllamaBaseURL:     "http://localhost:11434",
			MaxTokens:         2000,
		},
		Auth: AuthConfig{
			CookieName: "dishcover_session",
		},
		Recommend: RecommendConfig{
			MinInteractions: 5,
			HistoryLimit:    100,
			Concurrency:     3,
			DefaultLimit:    10,
			Matcher:         "scored",
			RateLimit:       1,
			RateWindow:      5 * time.Minute,
		},
		Cache: CacheConfig{
			PlaceTTL:       7 * 24 * time.Hour,
			SearchTTL:      time.Hour,
			CoalesceLinger: time.Second,
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/dishcover/config.json, then applies DISHCOVER_*
// environment overrides. Secrets are read from the environment first and
// fall back to $XDG_DATA_HOME/dishcover/secrets.json.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(account string) (string, error)
}

func loadWith(b ConfigBackend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, ss)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Generator.Backend {
	case "openrouter", "ollama":
	default:
		return fmt.Errorf("invalid generator.backend %q: want openrouter or ollama", c.Generator.Backend)
	}
	switch c.Recommend.Matcher {
	case "scored", "substring":
	default:
		return fmt.Errorf("invalid recommend.matcher %q: want scored or substring", c.Recommend.Matcher)
	}
	if c.Recommend.Concurrency < 1 {
		return fmt.Errorf("recommend.concurrency must be at least 1, got %d", c.Recommend.Concurrency)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// RequireServerSecrets reports every secret the HTTP server cannot start
// without.
func (c Config) RequireServerSecrets() error {
	var missing []string
	if c.Auth.SessionSecret == "" {
		missing = append(missing, "session secret (DISHCOVER_SESSION_SECRET)")
	}
	if c.Places.APIKey == "" {
		missing = append(missing, "Google Places API key (DISHCOVER_PLACES_API_KEY)")
	}
	if c.Generator.Backend == "openrouter" && c.Generator.OpenRouterAPIKey == "" {
		missing = append(missing, "OpenRouter API key (DISHCOVER_OPENROUTER_API_KEY)")
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.New("missing required config: " + strings.Join(missing, ", ") +
		". Set via environment or " + secretsFilePath())
}

// DBPath is the SQLite database location inside the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "dishcover.db")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "dishcover-data"
		}
	}
	return filepath.Join(dir, "dishcover")
}
