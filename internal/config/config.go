// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for
// zero-downtime updates of engine tunables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete memory engine configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// EngineConfig contains recall and reinforcement tunables.
type EngineConfig struct {
	// RecallK is the default number of similar turns returned by a recall.
	RecallK int `yaml:"recall_k"`
	// CandidatePool bounds how many recent embedded turns are scanned.
	CandidatePool int `yaml:"candidate_pool"`
	// TopThemes bounds how many theme aggregates a bundle carries.
	TopThemes int `yaml:"top_themes"`
	// FactConfidenceBase is the confidence assigned on first extraction.
	FactConfidenceBase float64 `yaml:"fact_confidence_base"`
	// FactConfidenceStep is added on each reinforcement, capped at 1.0.
	FactConfidenceStep float64 `yaml:"fact_confidence_step"`
	// ThemeSequenceCap bounds the emotions and snippets FIFO sequences.
	ThemeSequenceCap int `yaml:"theme_sequence_cap"`
	// ProfileEmotionWindow is how many recent turns feed the dominant
	// emotion computation.
	ProfileEmotionWindow int `yaml:"profile_emotion_window"`
}

// ArchiveConfig contains conversation archive settings.
type ArchiveConfig struct {
	// MaxTurnsPerUser caps the archive per user; 0 means unlimited.
	// When set, the oldest turns are pruned first after an append.
	MaxTurnsPerUser int `yaml:"max_turns_per_user"`
}

// EmbeddingConfig contains embedding generator settings.
type EmbeddingConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// MongoConfig contains document store settings.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// CacheConfig contains embedding and profile cache settings.
type CacheConfig struct {
	// RedisAddr enables the Redis embedding cache when non-empty.
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	EmbeddingTTL  time.Duration `yaml:"embedding_ttl"`
	ProfileTTL    time.Duration `yaml:"profile_ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			RecallK:              5,
			CandidatePool:        100,
			TopThemes:            5,
			FactConfidenceBase:   0.8,
			FactConfidenceStep:   0.1,
			ThemeSequenceCap:     5,
			ProfileEmotionWindow: 20,
		},
		Archive: ArchiveConfig{
			MaxTurnsPerUser: 0,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
			Timeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "recall",
		},
		Cache: CacheConfig{
			EmbeddingTTL: time.Hour,
			ProfileTTL:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "recall",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.RecallK <= 0 {
		return fmt.Errorf("engine.recall_k must be positive")
	}
	if c.Engine.CandidatePool <= 0 {
		return fmt.Errorf("engine.candidate_pool must be positive")
	}
	if c.Engine.TopThemes <= 0 {
		return fmt.Errorf("engine.top_themes must be positive")
	}
	if c.Engine.FactConfidenceBase <= 0 || c.Engine.FactConfidenceBase > 1.0 {
		return fmt.Errorf("engine.fact_confidence_base must be in (0, 1]: %v", c.Engine.FactConfidenceBase)
	}
	if c.Engine.FactConfidenceStep <= 0 || c.Engine.FactConfidenceStep > 1.0 {
		return fmt.Errorf("engine.fact_confidence_step must be in (0, 1]: %v", c.Engine.FactConfidenceStep)
	}
	if c.Engine.ThemeSequenceCap <= 0 {
		return fmt.Errorf("engine.theme_sequence_cap must be positive")
	}
	if c.Engine.ProfileEmotionWindow <= 0 {
		return fmt.Errorf("engine.profile_emotion_window must be positive")
	}
	if c.Archive.MaxTurnsPerUser < 0 {
		return fmt.Errorf("archive.max_turns_per_user cannot be negative")
	}
	if c.Embedding.Timeout < 0 {
		return fmt.Errorf("embedding.timeout cannot be negative")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be in [0, 1]: %v", c.Tracing.SampleRate)
	}
	return nil
}
