package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fanout.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.MaxConcurrency != 5 {
		t.Errorf("MaxConcurrency = %d, want 5", cfg.MaxConcurrency)
	}
	if cfg.RequestsPerSecond != 5.0 {
		t.Errorf("RequestsPerSecond = %v, want 5.0", cfg.RequestsPerSecond)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.Pool.Size != 5 {
		t.Errorf("Pool.Size = %d, want 5", cfg.Pool.Size)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("Cache.MaxEntries = %d, want 500", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.SimilarityThreshold != 0.86 {
		t.Errorf("Cache.SimilarityThreshold = %v, want 0.86", cfg.Cache.SimilarityThreshold)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/custom.db
max_concurrency: 10
requests_per_second: 2.5
retry:
  base_delay: 100ms
  max_delay: 2s
providers:
  - name: openai
    url: https://api.openai.com
    api_key: sk-test
    default_model: gpt-4
routes:
  - task: code_generation
    targets:
      - provider: openai
        model: gpt-4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("DBPath = %s", cfg.DBPath)
	}
	if cfg.MaxConcurrency != 10 {
		t.Errorf("MaxConcurrency = %d, want 10", cfg.MaxConcurrency)
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.RequestsPerSecond)
	}
	if cfg.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v", cfg.Retry.BaseDelay)
	}
	// Unset fields keep their defaults.
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want default 2", cfg.MaxRetries)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "openai" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if len(cfg.Routes) != 1 || len(cfg.Routes[0].Targets) != 1 {
		t.Errorf("routes = %+v", cfg.Routes)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("FANOUT_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
providers:
  - name: openai
    api_key: ${FANOUT_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers[0].APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Providers[0].APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero concurrency", "max_concurrency: 0"},
		{"negative rate", "requests_per_second: -1"},
		{"zero pool", "pool:\n  size: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Errorf("expected validation error for %q", tt.content)
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "max_concurrency: [this is not an int")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
