package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Structural settings come from
// config.yaml; secrets and durations come from the environment only.
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"-"`
		WriteTimeout time.Duration `yaml:"-"`
		IdleTimeout  time.Duration `yaml:"-"`
	} `yaml:"server"`

	Provider struct {
		BaseURL     string        `yaml:"baseURL"`
		Model       string        `yaml:"model"`
		Temperature float32       `yaml:"temperature"`
		MaxTokens   int           `yaml:"maxTokens"`
		APIKey      string        `yaml:"-"`
		Timeout     time.Duration `yaml:"-"`
	} `yaml:"provider"`

	Extractor struct {
		Binary  string        `yaml:"binary"`
		Timeout time.Duration `yaml:"-"`
	} `yaml:"extractor"`

	Limits struct {
		MaxUploadBytes int64 `yaml:"maxUploadBytes"`
		MaxInvoices    int   `yaml:"maxInvoices"`
		MaxMemberBytes int64 `yaml:"maxMemberBytes"`
		MaxPromptChars int   `yaml:"maxPromptChars"`
	} `yaml:"limits"`
}

// Load reads the YAML file at path when path is non-empty, then applies
// environment overrides and defaults. Callers that want an optional file
// pass "" when it does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Validate fails fast on settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.WriteTimeout <= c.Provider.Timeout {
		return fmt.Errorf("server write timeout %s must exceed provider timeout %s",
			c.Server.WriteTimeout, c.Provider.Timeout)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	c.Provider.APIKey = getEnv("OPENAI_API_KEY", "")
	c.Provider.BaseURL = getEnv("OPENAI_BASE_URL", c.Provider.BaseURL)
	c.Provider.Model = getEnv("OPENAI_MODEL", c.Provider.Model)
	c.Provider.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.Provider.Temperature)
	c.Provider.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.Provider.Timeout)

	c.Extractor.Binary = getEnv("PDFTOTEXT_BIN", c.Extractor.Binary)
	c.Extractor.Timeout = getEnvAsDuration("PDFTOTEXT_TIMEOUT", c.Extractor.Timeout)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Provider.Model == "" {
		c.Provider.Model = "gpt-4o-mini"
	}
	if c.Provider.Temperature == 0 {
		c.Provider.Temperature = 0.1
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = 4000
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 60 * time.Second
	}

	if c.Extractor.Binary == "" {
		c.Extractor.Binary = "pdftotext"
	}
	if c.Extractor.Timeout <= 0 {
		c.Extractor.Timeout = 25 * time.Second
	}

	if c.Limits.MaxUploadBytes <= 0 {
		c.Limits.MaxUploadBytes = 64 << 20
	}
	if c.Limits.MaxInvoices <= 0 {
		c.Limits.MaxInvoices = 200
	}
	if c.Limits.MaxMemberBytes <= 0 {
		c.Limits.MaxMemberBytes = 16 << 20
	}
	if c.Limits.MaxPromptChars <= 0 {
		c.Limits.MaxPromptChars = 1_500_000
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
