package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.Database.Addrs = []string{"localhost:6379"}
	c.ApplyDefaults()
	return c
}

func TestApplyDefaults(t *testing.T) {
	c := validConfig()

	if c.Embedding.Dimensions != 1536 {
		t.Errorf("embedding.dimensions = %d, want 1536", c.Embedding.Dimensions)
	}
	if c.Profile.DecayLambda != 0.023 {
		t.Errorf("profile.decay_lambda = %v, want 0.023", c.Profile.DecayLambda)
	}
	if c.Embedding.BreakerThreshold != 5 || c.Embedding.BreakerOpenTimeoutSec != 60 {
		t.Errorf("breaker defaults = %d/%d, want 5/60",
			c.Embedding.BreakerThreshold, c.Embedding.BreakerOpenTimeoutSec)
	}
	if c.Events.Stream != "persona:events" || c.Events.Group != "persona-profile" {
		t.Errorf("events defaults = %s/%s", c.Events.Stream, c.Events.Group)
	}
	if c.Search.KNNCandidates != 200 {
		t.Errorf("search.knn_candidates = %d, want 200", c.Search.KNNCandidates)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }, true},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"no db addrs", func(c *Config) { c.Database.Addrs = nil }, true},
		{"batch window too large", func(c *Config) { c.Profile.BatchWindowSec = 61 }, true},
		{"retries too large", func(c *Config) { c.Profile.MaxRetries = 11 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PERSONA_TEST_ADDR", "redis:6379")
	os.Unsetenv("PERSONA_TEST_UNSET")

	tests := []struct {
		in, want string
	}{
		{"addr: ${PERSONA_TEST_ADDR}", "addr: redis:6379"},
		{"addr: ${PERSONA_TEST_UNSET:-localhost:6379}", "addr: localhost:6379"},
		{"addr: ${PERSONA_TEST_ADDR:-fallback}", "addr: redis:6379"},
		{"addr: ${PERSONA_TEST_UNSET}", "addr: "},
		{"plain: value", "plain: value"},
	}
	for _, tt := range tests {
		if got := string(expandEnvVars([]byte(tt.in))); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: 9090
database:
  addrs:
    - ${PERSONA_TEST_REDIS:-localhost:6379}
events:
  workers: 2
`
	if err := os.WriteFile(filepath.Join(cfgDir, "test.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if len(cfg.Database.Addrs) != 1 || cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("addrs = %v", cfg.Database.Addrs)
	}
	if cfg.Events.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Events.Workers)
	}
	// Unset sections get defaults.
	if cfg.Events.Stream != "persona:events" {
		t.Errorf("stream = %q", cfg.Events.Stream)
	}
}
