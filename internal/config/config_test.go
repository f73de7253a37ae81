package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Retention.MergeSimilarity != 0.85 {
		t.Errorf("merge similarity = %v, want 0.85", cfg.Retention.MergeSimilarity)
	}
	if cfg.Scheduler.CompressionIntervalSeconds != 3600 {
		t.Errorf("compression interval = %d, want 3600", cfg.Scheduler.CompressionIntervalSeconds)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:38442" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engram.yaml")
	yaml := `
server:
  port: 9999
retention:
  personalization: 1.2
summarizer:
  mode: ollama
  ollama_model: mistral
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Retention.Personalization != 1.2 {
		t.Errorf("personalization = %v, want 1.2", cfg.Retention.Personalization)
	}
	if cfg.Summarizer.OllamaModel != "mistral" {
		t.Errorf("ollama model = %q, want mistral", cfg.Summarizer.OllamaModel)
	}

	// Untouched sections keep their defaults.
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("top_k = %d, want default 10", cfg.Retrieval.TopK)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("bind = %q, want default", cfg.Server.Bind)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ENGRAM_PORT", "40123")
	t.Setenv("ENGRAM_SUMMARIZER_MODE", "ollama")
	t.Setenv("ENGRAM_SNAPSHOT_PATH", "/tmp/alt.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 40123 {
		t.Errorf("port = %d, want env override 40123", cfg.Server.Port)
	}
	if cfg.Summarizer.Mode != "ollama" {
		t.Errorf("summarizer mode = %q, want env override", cfg.Summarizer.Mode)
	}
	if cfg.Snapshot.Path != "/tmp/alt.db" {
		t.Errorf("snapshot path = %q, want env override", cfg.Snapshot.Path)
	}
}

// An env var named after a whole config section must not shadow the keys
// inside it: viper resolves such a binding to nil and the override would
// silently never land, so nothing may bind to those names.
func TestLoadEnvSectionNamesInert(t *testing.T) {
	t.Setenv("ENGRAM_SUMMARIZER", "ollama")
	t.Setenv("ENGRAM_SNAPSHOT", "/tmp/ignored.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Summarizer.Mode != "extractive" {
		t.Errorf("summarizer mode = %q, want untouched default", cfg.Summarizer.Mode)
	}
	if cfg.Summarizer.OllamaModel != "llama3.2" {
		t.Errorf("ollama model = %q, want untouched default", cfg.Summarizer.OllamaModel)
	}
	if cfg.Snapshot.Path != "" {
		t.Errorf("snapshot path = %q, want untouched default", cfg.Snapshot.Path)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"personalization low", func(c *Config) { c.Retention.Personalization = 0.5 }},
		{"personalization high", func(c *Config) { c.Retention.Personalization = 2.0 }},
		{"zero decay day", func(c *Config) { c.Retention.DecayDaySeconds = 0 }},
		{"merge group of one", func(c *Config) { c.Retention.MergeMinGroup = 1 }},
		{"blend weights", func(c *Config) { c.Retrieval.SemanticWeight = 0.9 }},
		{"summarizer mode", func(c *Config) { c.Summarizer.Mode = "telepathy" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
