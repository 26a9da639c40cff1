package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the persona service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Profile   ProfileConfig   `yaml:"profile"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CatalogConfig holds the relational product catalog settings.
type CatalogConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// EmbeddingConfig holds embedding provider and resilience settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`

	MaxAttempts           int `yaml:"max_attempts"`             // retry attempts per call
	InitialBackoffMs      int `yaml:"initial_backoff_ms"`       // doubles each retry
	RequestTimeoutSec     int `yaml:"request_timeout_sec"`      // per-call deadline
	BreakerThreshold      int `yaml:"breaker_threshold"`        // failures before opening
	BreakerOpenTimeoutSec int `yaml:"breaker_open_timeout_sec"` // open duration before half-open probe
}

// ProfileConfig holds interest vector decay and pipeline retry settings.
type ProfileConfig struct {
	DecayLambda    float64 `yaml:"decay_lambda"`
	BatchWindowSec int     `yaml:"batch_window_sec"`
	BatchEnabled   bool    `yaml:"batch_enabled"`
	MaxRetries     int     `yaml:"max_retries"`
	RetryDelayMs   int     `yaml:"retry_delay_ms"`
	DedupTTLHours  int     `yaml:"dedup_ttl_hours"`
}

// CacheConfig holds query embedding cache settings.
type CacheConfig struct {
	QueryTTLSec int `yaml:"query_ttl_sec"`
}

// EventsConfig holds the behavioral event stream settings.
type EventsConfig struct {
	Stream    string `yaml:"stream"`
	Group     string `yaml:"group"`
	Workers   int    `yaml:"workers"`
	BatchSize int    `yaml:"batch_size"`
	BlockMs   int    `yaml:"block_ms"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	KNNCandidates   int `yaml:"knn_candidates"` // corpus hits fetched before offset/limit
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "persona.db"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.MaxAttempts <= 0 {
		c.Embedding.MaxAttempts = 3
	}
	if c.Embedding.InitialBackoffMs <= 0 {
		c.Embedding.InitialBackoffMs = 1000
	}
	if c.Embedding.RequestTimeoutSec <= 0 {
		c.Embedding.RequestTimeoutSec = 10
	}
	if c.Embedding.BreakerThreshold <= 0 {
		c.Embedding.BreakerThreshold = 5
	}
	if c.Embedding.BreakerOpenTimeoutSec <= 0 {
		c.Embedding.BreakerOpenTimeoutSec = 60
	}
	if c.Profile.DecayLambda <= 0 {
		c.Profile.DecayLambda = 0.023
	}
	if c.Profile.BatchWindowSec <= 0 {
		c.Profile.BatchWindowSec = 5
	}
	if c.Profile.MaxRetries <= 0 {
		c.Profile.MaxRetries = 3
	}
	if c.Profile.RetryDelayMs <= 0 {
		c.Profile.RetryDelayMs = 500
	}
	if c.Profile.DedupTTLHours <= 0 {
		c.Profile.DedupTTLHours = 24
	}
	if c.Cache.QueryTTLSec <= 0 {
		c.Cache.QueryTTLSec = 3600
	}
	if c.Events.Stream == "" {
		c.Events.Stream = "persona:events"
	}
	if c.Events.Group == "" {
		c.Events.Group = "persona-profile"
	}
	if c.Events.Workers <= 0 {
		c.Events.Workers = 4
	}
	if c.Events.BatchSize <= 0 {
		c.Events.BatchSize = 16
	}
	if c.Events.BlockMs <= 0 {
		c.Events.BlockMs = 5000
	}
	if c.Search.KNNCandidates <= 0 {
		c.Search.KNNCandidates = 200
	}
	if c.Search.HNSWM <= 0 {
		c.Search.HNSWM = 32
	}
	if c.Search.HNSWEFConstruct <= 0 {
		c.Search.HNSWEFConstruct = 400
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Profile.BatchWindowSec < 1 || c.Profile.BatchWindowSec > 60 {
		return fmt.Errorf("profile.batch_window_sec must be in [1,60], got %d", c.Profile.BatchWindowSec)
	}
	if c.Profile.MaxRetries < 1 || c.Profile.MaxRetries > 10 {
		return fmt.Errorf("profile.max_retries must be in [1,10], got %d", c.Profile.MaxRetries)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
