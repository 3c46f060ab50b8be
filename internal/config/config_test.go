package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"EXAMDOC_TRANSCRIBE_PROVIDER", "EXAMDOC_TRANSCRIBE_API_KEY", "EXAMDOC_TRANSCRIBE_MODEL",
		"EXAMDOC_TRANSCRIBE_BASE_URL", "EXAMDOC_TRANSCRIBE_ENABLE_THINKING",
		"EXAMDOC_STRUCTURE_PROVIDER", "EXAMDOC_STRUCTURE_API_KEY", "EXAMDOC_STRUCTURE_MODEL",
		"EXAMDOC_STRUCTURE_BASE_URL", "EXAMDOC_STRUCTURE_ENABLE_THINKING",
		"DASHSCOPE_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"EXAMDOC_RENDER_DPI", "EXAMDOC_SOFFICE_PATH", "EXAMDOC_WORKERS", "EXAMDOC_LEDGER_PATH",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(name, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderOpenAI, cfg.Transcribe.Provider)
	assert.True(t, cfg.Transcribe.EnableThinking)
	assert.Equal(t, "gpt-4.1", cfg.Structure.Model)
	assert.Equal(t, float64(200), cfg.Render.DPI)
	assert.Equal(t, 1, cfg.Convert.Workers)
	assert.True(t, cfg.Convert.KeepImages)
	assert.Equal(t, "json", cfg.Manifest.PathPrefix)
	assert.Equal(t, "exam-list.json", cfg.Manifest.OutputName)
	assert.Empty(t, cfg.Ledger.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "examdoc.yaml")
	yamlContent := `
transcribe:
  model: qwen-vl-max
  timeout: 90s
convert:
  workers: 3
manifest:
  path_prefix: data
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	t.Setenv("EXAMDOC_WORKERS", "2")
	t.Setenv("DASHSCOPE_API_KEY", "sk-dash")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen-vl-max", cfg.Transcribe.Model)
	assert.Equal(t, 90*time.Second, cfg.Transcribe.Timeout)
	assert.Equal(t, 2, cfg.Convert.Workers, "env overrides yaml")
	assert.Equal(t, "data", cfg.Manifest.PathPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sk-dash", cfg.Transcribe.APIKey)
	assert.Empty(t, cfg.Structure.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("convert: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyAIEnv_KeyPrecedence(t *testing.T) {
	clearEnv(t)

	t.Run("explicit prefix wins", func(t *testing.T) {
		t.Setenv("EXAMDOC_TRANSCRIBE_API_KEY", "explicit")
		t.Setenv("DASHSCOPE_API_KEY", "fallback")

		ai := DefaultConfig().Transcribe
		applyAIEnv(&ai, "EXAMDOC_TRANSCRIBE_", "DASHSCOPE_API_KEY")
		assert.Equal(t, "explicit", ai.APIKey)
	})

	t.Run("file value kept over fallback", func(t *testing.T) {
		t.Setenv("DASHSCOPE_API_KEY", "fallback")

		ai := DefaultConfig().Transcribe
		ai.APIKey = "from-file"
		applyAIEnv(&ai, "EXAMDOC_TRANSCRIBE_", "DASHSCOPE_API_KEY")
		assert.Equal(t, "from-file", ai.APIKey)
	})

	t.Run("gemini reads google keys", func(t *testing.T) {
		t.Setenv("EXAMDOC_STRUCTURE_PROVIDER", "Gemini")
		t.Setenv("GOOGLE_API_KEY", "g-key")
		t.Setenv("OPENAI_API_KEY", "o-key")

		ai := DefaultConfig().Structure
		applyAIEnv(&ai, "EXAMDOC_STRUCTURE_", "OPENAI_API_KEY")
		assert.Equal(t, ProviderGemini, ai.Provider)
		assert.Equal(t, "g-key", ai.APIKey)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Transcribe.Provider = "bedrock" }},
		{"missing base url", func(c *Config) { c.Structure.BaseURL = "" }},
		{"missing model", func(c *Config) { c.Transcribe.Model = "" }},
		{"dpi too low", func(c *Config) { c.Render.DPI = 10 }},
		{"zero workers", func(c *Config) { c.Convert.Workers = 0 }},
		{"no manifest name", func(c *Config) { c.Manifest.OutputName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("gemini needs no base url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Structure.Provider = ProviderGemini
		cfg.Structure.BaseURL = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("transcribe reported before structure", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Transcribe.Model = ""
		cfg.Structure.Provider = "bedrock"
		for i := 0; i < 20; i++ {
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, "transcribe: model is required", err.Error())
		}
	})
}

func TestRequireKey(t *testing.T) {
	ai := DefaultConfig().Transcribe
	assert.Error(t, ai.RequireKey())

	ai.APIKey = "sk"
	assert.NoError(t, ai.RequireKey())
}
