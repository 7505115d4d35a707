package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Engine.RecallK)
	assert.Equal(t, 100, cfg.Engine.CandidatePool)
	assert.Equal(t, 0.8, cfg.Engine.FactConfidenceBase)
	assert.Equal(t, 0.1, cfg.Engine.FactConfidenceStep)
	assert.Equal(t, 5, cfg.Engine.ThemeSequenceCap)
	assert.Equal(t, 0, cfg.Archive.MaxTurnsPerUser)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")

	content := `
engine:
  recall_k: 3
  candidate_pool: 50
embedding:
  base_url: ${RECALL_TEST_OLLAMA}
  model: nomic-embed-text
  timeout: 10s
archive:
  max_turns_per_user: 500
`
	t.Setenv("RECALL_TEST_OLLAMA", "http://ollama.internal:11434")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.RecallK)
	assert.Equal(t, 50, cfg.Engine.CandidatePool)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.8, cfg.Engine.FactConfidenceBase)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 500, cfg.Archive.MaxTurnsPerUser)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero recall_k", func(c *Config) { c.Engine.RecallK = 0 }},
		{"zero pool", func(c *Config) { c.Engine.CandidatePool = 0 }},
		{"confidence base above cap", func(c *Config) { c.Engine.FactConfidenceBase = 1.5 }},
		{"zero confidence step", func(c *Config) { c.Engine.FactConfidenceStep = 0 }},
		{"zero sequence cap", func(c *Config) { c.Engine.ThemeSequenceCap = 0 }},
		{"negative retention", func(c *Config) { c.Archive.MaxTurnsPerUser = -1 }},
		{"sample rate out of range", func(c *Config) { c.Tracing.SampleRate = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStaticManager(t *testing.T) {
	cfg := DefaultConfig()
	m := NewStaticManager(cfg, discardLogger())
	assert.Same(t, cfg, m.Get())
	assert.NoError(t, m.Close())
}

func TestManagerReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  recall_k: 5\n"), 0o600))

	m, err := NewManager(path, discardLogger())
	require.NoError(t, err)
	defer m.Close()

	changed := make(chan *Config, 1)
	m.OnChange(func(c *Config) { changed <- c })

	require.NoError(t, os.WriteFile(path, []byte("engine:\n  recall_k: 9\n"), 0o600))
	m.reload()

	select {
	case c := <-changed:
		assert.Equal(t, 9, c.Engine.RecallK)
	default:
		t.Fatal("OnChange callback was not invoked")
	}
	assert.Equal(t, 9, m.Get().Engine.RecallK)
}
