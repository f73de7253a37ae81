// Package config holds all engram configuration: typed defaults plus
// YAML-file and environment loading.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all engram configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server,omitempty"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot" yaml:"snapshot,omitempty"`
	Retention  RetentionConfig  `mapstructure:"retention" yaml:"retention,omitempty"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler,omitempty"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval" yaml:"retrieval,omitempty"`
	Summarizer SummarizerConfig `mapstructure:"summarizer" yaml:"summarizer,omitempty"`
	Log        LogConfig        `mapstructure:"log" yaml:"log,omitempty"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind" yaml:"bind,omitempty"`
	Port int    `mapstructure:"port" yaml:"port,omitempty"`
}

type SnapshotConfig struct {
	// Path to the sqlite snapshot file. Empty means the per-user default
	// (resolved at runtime by the snapshot package).
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// RetentionConfig tunes the decay math and the maintenance thresholds.
type RetentionConfig struct {
	// Personalization is the process-wide forgetting scalar U:
	// 0.7 = slow forgetting ... 1.5 = fast forgetting.
	Personalization float64 `mapstructure:"personalization" yaml:"personalization,omitempty"`
	// DecayDaySeconds is the length of one decay-day.
	DecayDaySeconds int `mapstructure:"decay_day_seconds" yaml:"decay_day_seconds,omitempty"`

	// Batch-merge clustering.
	MergeSimilarity float64 `mapstructure:"merge_similarity" yaml:"merge_similarity,omitempty"`
	MergeMinGroup   int     `mapstructure:"merge_min_group" yaml:"merge_min_group,omitempty"`

	// Mention branching thresholds.
	MentionMergeSimilarity float64 `mapstructure:"mention_merge_similarity" yaml:"mention_merge_similarity,omitempty"`
	MentionLinkSimilarity  float64 `mapstructure:"mention_link_similarity" yaml:"mention_link_similarity,omitempty"`

	// Cleanup policy.
	SoftDeleteGraceDays int     `mapstructure:"soft_delete_grace_days" yaml:"soft_delete_grace_days,omitempty"`
	CleanupFloor        float64 `mapstructure:"cleanup_floor" yaml:"cleanup_floor,omitempty"`
	CleanupAgeDays      int     `mapstructure:"cleanup_age_days" yaml:"cleanup_age_days,omitempty"`
}

type SchedulerConfig struct {
	CompressionIntervalSeconds int `mapstructure:"compression_interval_seconds" yaml:"compression_interval_seconds,omitempty"`
	MergeIntervalSeconds       int `mapstructure:"merge_interval_seconds" yaml:"merge_interval_seconds,omitempty"`
	CleanupIntervalSeconds     int `mapstructure:"cleanup_interval_seconds" yaml:"cleanup_interval_seconds,omitempty"`
	MetricsHistory             int `mapstructure:"metrics_history" yaml:"metrics_history,omitempty"`
}

type RetrievalConfig struct {
	TopK            int     `mapstructure:"top_k" yaml:"top_k,omitempty"`
	CoarseThreshold float64 `mapstructure:"coarse_threshold" yaml:"coarse_threshold,omitempty"`
	// Fine-stage blend weights; must sum to 1.
	SemanticWeight  float64 `mapstructure:"semantic_weight" yaml:"semantic_weight,omitempty"`
	RecencyWeight   float64 `mapstructure:"recency_weight" yaml:"recency_weight,omitempty"`
	RetentionWeight float64 `mapstructure:"retention_weight" yaml:"retention_weight,omitempty"`
	Rerank          bool    `mapstructure:"rerank" yaml:"rerank"`
}

type SummarizerConfig struct {
	Mode           string `mapstructure:"mode" yaml:"mode,omitempty"` // "extractive" or "ollama"
	OllamaURL      string `mapstructure:"ollama_url" yaml:"ollama_url,omitempty"`
	OllamaModel    string `mapstructure:"ollama_model" yaml:"ollama_model,omitempty"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty"`   // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format,omitempty"` // "pretty" or "json"
}

// Default returns a Config with the documented defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38442,
		},
		Snapshot: SnapshotConfig{
			Path: "", // resolved at runtime
		},
		Retention: RetentionConfig{
			Personalization:        1.0,
			DecayDaySeconds:        86400,
			MergeSimilarity:        0.85,
			MergeMinGroup:          3,
			MentionMergeSimilarity: 0.85,
			MentionLinkSimilarity:  0.60,
			SoftDeleteGraceDays:    30,
			CleanupFloor:           0.01,
			CleanupAgeDays:         365,
		},
		Scheduler: SchedulerConfig{
			CompressionIntervalSeconds: 3600,
			MergeIntervalSeconds:       7200,
			CleanupIntervalSeconds:     86400,
			MetricsHistory:             100,
		},
		Retrieval: RetrievalConfig{
			TopK:            10,
			CoarseThreshold: 0.1,
			SemanticWeight:  0.7,
			RecencyWeight:   0.3,
			RetentionWeight: 0.0,
			Rerank:          true,
		},
		Summarizer: SummarizerConfig{
			Mode:           "extractive",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "llama3.2",
			TimeoutSeconds: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// Load reads configuration: defaults, then an optional YAML file, then
// ENGRAM_* environment overrides. path may name a config file directly;
// empty means search the usual locations.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("engram")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/engram")
	}

	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind the common overrides so env-only values survive Unmarshal.
	// Alias names must not equal a config section (ENGRAM_SNAPSHOT,
	// ENGRAM_SUMMARIZER): viper would treat the whole subtree as shadowed
	// by the env var and every key under it would read as nil.
	_ = v.BindEnv("server.bind", "ENGRAM_BIND")
	_ = v.BindEnv("server.port", "ENGRAM_PORT")
	_ = v.BindEnv("snapshot.path", "ENGRAM_SNAPSHOT_PATH")
	_ = v.BindEnv("retention.personalization", "ENGRAM_PERSONALIZATION")
	_ = v.BindEnv("summarizer.mode", "ENGRAM_SUMMARIZER_MODE")
	_ = v.BindEnv("summarizer.ollama_url", "ENGRAM_OLLAMA_URL")
	_ = v.BindEnv("summarizer.ollama_model", "ENGRAM_OLLAMA_MODEL")
	_ = v.BindEnv("log.level", "ENGRAM_LOG_LEVEL")
	_ = v.BindEnv("log.format", "ENGRAM_LOG_FORMAT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		// No config file anywhere: defaults + env only.
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Retention.Personalization < 0.7 || c.Retention.Personalization > 1.5 {
		return fmt.Errorf("config: personalization %.2f outside [0.7, 1.5]", c.Retention.Personalization)
	}
	if c.Retention.DecayDaySeconds <= 0 {
		return fmt.Errorf("config: decay_day_seconds must be positive")
	}
	if c.Retention.MergeMinGroup < 2 {
		return fmt.Errorf("config: merge_min_group %d below 2", c.Retention.MergeMinGroup)
	}
	sum := c.Retrieval.SemanticWeight + c.Retrieval.RecencyWeight + c.Retrieval.RetentionWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("config: retrieval blend weights sum to %.3f, want 1", sum)
	}
	switch c.Summarizer.Mode {
	case "extractive", "ollama":
	default:
		return fmt.Errorf("config: unknown summarizer mode %q", c.Summarizer.Mode)
	}
	switch c.Log.Format {
	case "pretty", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
