// Package config loads triage configuration from config.yaml and the
// TRIAGE_* environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/triagehq/triage/internal/retry"
)

// Config is the full configuration surface of the service.
type Config struct {
	// Actor is recorded as the author of CLI-originated commands.
	Actor string `yaml:"actor" json:"actor" mapstructure:"actor"`
	Retry Retry  `yaml:"retry" json:"retry" mapstructure:"retry"`
	AI    AI     `yaml:"ai" json:"ai" mapstructure:"ai"`
}

// Retry configures the backoff wrapper around external AI calls.
type Retry struct {
	MaxRetries     int     `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms" json:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor" json:"backoff_factor" mapstructure:"backoff_factor"`
	MaxDelayMs     int     `yaml:"max_delay_ms" json:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// AI configures the Anthropic analysis client. The API key is env-only
// (ANTHROPIC_API_KEY); it never lives in the config file.
type AI struct {
	Model     string `yaml:"model" json:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Actor: "triage",
		Retry: Retry{
			MaxRetries:     3,
			InitialDelayMs: 500,
			BackoffFactor:  2,
			MaxDelayMs:     10000,
		},
		AI: AI{
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 1024,
		},
	}
}

// Load reads configuration. path selects an explicit config file; when
// empty, ./config.yaml is used if present. TRIAGE_* environment variables
// override file values (e.g. TRIAGE_RETRY_MAX_RETRIES).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("actor", def.Actor)
	v.SetDefault("retry.max_retries", def.Retry.MaxRetries)
	v.SetDefault("retry.initial_delay_ms", def.Retry.InitialDelayMs)
	v.SetDefault("retry.backoff_factor", def.Retry.BackoffFactor)
	v.SetDefault("retry.max_delay_ms", def.Retry.MaxDelayMs)
	v.SetDefault("ai.model", def.AI.Model)
	v.SetDefault("ai.max_tokens", def.AI.MaxTokens)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("config: ai.max_tokens must be > 0 (got %d)", c.AI.MaxTokens)
	}
	return nil
}

// RetryPolicy bridges the config section to the retry package.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    c.Retry.MaxRetries,
		InitialDelay:  time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		BackoffFactor: c.Retry.BackoffFactor,
		MaxDelay:      time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
	}
}

// WriteDefault writes a starter config.yaml to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	body, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	content := "# triage configuration\n# Values here are overridden by TRIAGE_* environment variables.\n" + string(body)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
