package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"go-ask/internal/apperr"
	"go-ask/internal/llm"
)

// ProviderConfig holds per-provider overrides.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// HistoryConfig controls the Postgres exchange history.
type HistoryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DatabaseURL string `mapstructure:"database_url"`
}

// LogConfig defines the logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Config holds all configuration values
type Config struct {
	DefaultModel string                    `mapstructure:"default_model"`
	System       string                    `mapstructure:"system"`
	Temperature  float64                   `mapstructure:"temperature"`
	MaxTokens    int                       `mapstructure:"max_tokens"`
	Timeout      time.Duration             `mapstructure:"timeout"`
	Format       string                    `mapstructure:"format"`
	OutputDir    string                    `mapstructure:"output_dir"`
	Providers    map[string]ProviderConfig `mapstructure:"providers"`
	History      HistoryConfig             `mapstructure:"history"`
	Log          LogConfig                 `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "openai")
	v.SetDefault("system", "")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("timeout", llm.DefaultTimeout)
	v.SetDefault("format", "text")
	v.SetDefault("output_dir", ".")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.database_url", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
}

// defaultConfigPath returns $XDG_CONFIG_HOME/ask/config.yaml or its platform equivalent.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ask", "config.yaml")
}

// LoadConfig loads configuration from .env, the config file and ASK_* environment
// variables. An explicit path must exist; the default path is optional.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("ask")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("history.database_url", "ASK_HISTORY_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "bind environment")
	}

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}

	var used string
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		switch {
		case err == nil:
			used = path
		case !explicit && isNotExist(err):
			// no config file, defaults and environment only
		default:
			return nil, apperr.Wrap(err, apperr.KindConfig, "read config file "+path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "unmarshal config")
	}
	cfg.File = used
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	if _, _, err := cfg.DefaultTarget(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// DefaultTarget parses default_model, written as "provider" or "provider:model".
func (c *Config) DefaultTarget() (llm.Provider, string, error) {
	raw := strings.TrimSpace(c.DefaultModel)
	name, model, hasModel := strings.Cut(raw, ":")

	p, err := llm.ParseProvider(name)
	if err != nil {
		return 0, "", apperr.Wrap(err, apperr.KindConfig, fmt.Sprintf("malformed default_model %q", raw))
	}
	if hasModel && strings.TrimSpace(model) == "" {
		return 0, "", apperr.Newf(apperr.KindConfig, "malformed default_model %q: empty model after ':'", raw)
	}
	return p, strings.TrimSpace(model), nil
}

// provider returns the overrides for p. Keys may use any accepted provider name.
func (c *Config) provider(p llm.Provider) ProviderConfig {
	for name, pc := range c.Providers {
		if got, err := llm.ParseProvider(name); err == nil && got == p {
			return pc
		}
	}
	return ProviderConfig{}
}

// APIKey returns the configured key for p, falling back to its environment variables.
func (c *Config) APIKey(p llm.Provider) string {
	if key := c.provider(p).APIKey; key != "" {
		return key
	}
	for _, env := range p.KeyEnv() {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}

// ModelFor returns the configured model for p, or the provider default.
func (c *Config) ModelFor(p llm.Provider) string {
	if m := c.provider(p).Model; m != "" {
		return m
	}
	if dp, dm, err := c.DefaultTarget(); err == nil && dp == p && dm != "" {
		return dm
	}
	return p.DefaultModel()
}

// BaseURL returns the API root override for p, if any.
func (c *Config) BaseURL(p llm.Provider) string {
	return c.provider(p).BaseURL
}
