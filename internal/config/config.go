// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	Completion CompletionConfig

	// ReceiveTimeout bounds each session wait for an inbound event.
	ReceiveTimeout time.Duration
	// LongSilence is how long a fully on-task user goes before the assistant
	// speaks up unprompted.
	LongSilence time.Duration
}

// CompletionConfig configures the OpenAI-compatible completion service.
type CompletionConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	PromptBudget int
	Timeout      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/attent.db"),
		Completion: CompletionConfig{
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			Model:        getEnv("MODEL_NAME", "gpt-4"),
			MaxTokens:    getEnvInt("COMPLETION_MAX_TOKENS", 1024),
			PromptBudget: getEnvInt("PROMPT_TOKEN_BUDGET", 6000),
			Timeout:      time.Duration(getEnvInt("COMPLETION_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		ReceiveTimeout: time.Duration(getEnvInt("RECEIVE_TIMEOUT_SECONDS", 5)) * time.Second,
		LongSilence:    time.Duration(getEnvInt("LONG_SILENCE_MINUTES", 45)) * time.Minute,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Completion.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if c.Completion.BaseURL == "" {
		return fmt.Errorf("OPENAI_BASE_URL cannot be empty")
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if c.Completion.PromptBudget <= 0 {
		return fmt.Errorf("PROMPT_TOKEN_BUDGET must be > 0")
	}
	if c.ReceiveTimeout <= 0 {
		return fmt.Errorf("RECEIVE_TIMEOUT_SECONDS must be > 0")
	}
	if c.LongSilence <= 0 {
		return fmt.Errorf("LONG_SILENCE_MINUTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
