// Package config loads examdoc configuration.
// Sources are applied in order: defaults, optional YAML file, .env, environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai" // any OpenAI-compatible chat completions endpoint
	ProviderGemini = "gemini"
)

// Config holds all configuration for examdoc.
type Config struct {
	Transcribe AIConfig       `yaml:"transcribe"`
	Structure  AIConfig       `yaml:"structure"`
	Render     RenderConfig   `yaml:"render"`
	Convert    ConvertConfig  `yaml:"convert"`
	Manifest   ManifestConfig `yaml:"manifest"`
	Ledger     LedgerConfig   `yaml:"ledger"`
	Log        LogConfig      `yaml:"log"`
}

// AIConfig describes one AI service endpoint.
type AIConfig struct {
	Provider       string        `yaml:"provider"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	EnableThinking bool          `yaml:"enable_thinking"`
	Timeout        time.Duration `yaml:"timeout"`
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
	DPI         float64 `yaml:"dpi"`
	SofficePath string  `yaml:"soffice_path"`
}

// ConvertConfig controls the document assembler.
type ConvertConfig struct {
	Workers    int  `yaml:"workers"`
	KeepImages bool `yaml:"keep_images"`
}

// ManifestConfig controls the exam list indexer.
type ManifestConfig struct {
	PathPrefix string `yaml:"path_prefix"`
	OutputName string `yaml:"output_name"`
}

// LedgerConfig controls the run history database. Empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Transcribe: AIConfig{
			Provider:       ProviderOpenAI,
			BaseURL:        "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:          "qwen3.5-plus",
			EnableThinking: true,
			Timeout:        5 * time.Minute,
		},
		Structure: AIConfig{
			Provider: ProviderOpenAI,
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4.1",
			Timeout:  10 * time.Minute,
		},
		Render: RenderConfig{
			DPI:         200,
			SofficePath: "soffice",
		},
		Convert: ConvertConfig{
			Workers:    1,
			KeepImages: true,
		},
		Manifest: ManifestConfig{
			PathPrefix: "json",
			OutputName: "exam-list.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from an optional YAML file and applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors. API keys are checked by
// RequireKey at the point a command actually needs them.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		ai   AIConfig
	}{
		{"transcribe", c.Transcribe},
		{"structure", c.Structure},
	}
	for _, sec := range sections {
		name, ai := sec.name, sec.ai
		if ai.Provider != ProviderOpenAI && ai.Provider != ProviderGemini {
			return fmt.Errorf("%s: invalid provider: %q", name, ai.Provider)
		}
		if ai.Provider == ProviderOpenAI && ai.BaseURL == "" {
			return fmt.Errorf("%s: base_url is required", name)
		}
		if ai.Model == "" {
			return fmt.Errorf("%s: model is required", name)
		}
	}

	if c.Render.DPI < 36 || c.Render.DPI > 600 {
		return fmt.Errorf("render dpi must be between 36 and 600, got %v", c.Render.DPI)
	}

	if c.Convert.Workers < 1 {
		return fmt.Errorf("convert workers must be at least 1, got %d", c.Convert.Workers)
	}

	if c.Manifest.OutputName == "" {
		return fmt.Errorf("manifest output_name is required")
	}

	return nil
}

// RequireKey returns an error when the endpoint has no API key.
func (a AIConfig) RequireKey() error {
	if a.APIKey == "" {
		return fmt.Errorf("no API key configured for %s provider (model %s)", a.Provider, a.Model)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	applyAIEnv(&cfg.Transcribe, "EXAMDOC_TRANSCRIBE_", "DASHSCOPE_API_KEY")
	applyAIEnv(&cfg.Structure, "EXAMDOC_STRUCTURE_", "OPENAI_API_KEY")

	if v := os.Getenv("EXAMDOC_RENDER_DPI"); v != "" {
		if dpi, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Render.DPI = dpi
		}
	}

	if v := os.Getenv("EXAMDOC_SOFFICE_PATH"); v != "" {
		cfg.Render.SofficePath = v
	}

	if v := os.Getenv("EXAMDOC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Convert.Workers = n
		}
	}

	if v := os.Getenv("EXAMDOC_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func applyAIEnv(ai *AIConfig, prefix, fallbackKeyVar string) {
	if v := os.Getenv(prefix + "PROVIDER"); v != "" {
		ai.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(prefix + "BASE_URL"); v != "" {
		ai.BaseURL = v
	}
	if v := os.Getenv(prefix + "MODEL"); v != "" {
		ai.Model = v
	}
	if v := os.Getenv(prefix + "ENABLE_THINKING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			ai.EnableThinking = b
		}
	}

	if v := os.Getenv(prefix + "API_KEY"); v != "" {
		ai.APIKey = v
		return
	}
	if ai.APIKey != "" {
		return
	}

	if ai.Provider == ProviderGemini {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := os.Getenv(name); v != "" {
				ai.APIKey = v
				return
			}
		}
		return
	}
	ai.APIKey = os.Getenv(fallbackKeyVar)
}
