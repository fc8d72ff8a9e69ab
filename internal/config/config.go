// Package config provides configuration for the orchestrator.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the orchestrator configuration. It is injected into the
// components that need it rather than read ambiently.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM gateway (OpenAI-compatible)
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModelPrimary string
	LLMModelFast    string
	LLMTimeout      time.Duration

	// Orchestrator bounds
	MaxSteps           int
	MaxDuration        time.Duration
	DefaultWorkspaceID string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DATABASE_URL", "file:orchestrator.db?cache=shared&mode=rwc")
	v.SetDefault("LLM_BASE_URL", "http://localhost:4000")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_MODEL_PRIMARY", "gpt-4o")
	v.SetDefault("LLM_MODEL_FAST", "gpt-4o-mini")
	v.SetDefault("LLM_TIMEOUT_MS", 30000)
	v.SetDefault("MAX_STEPS", 10)
	v.SetDefault("MAX_DURATION_MS", 60000)
	v.SetDefault("DEFAULT_WORKSPACE_ID", "")
	v.SetDefault("LOG_LEVEL", "info")

	return &Config{
		HTTPPort:           v.GetInt("HTTP_PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		LLMBaseURL:         v.GetString("LLM_BASE_URL"),
		LLMAPIKey:          v.GetString("LLM_API_KEY"),
		LLMModelPrimary:    v.GetString("LLM_MODEL_PRIMARY"),
		LLMModelFast:       v.GetString("LLM_MODEL_FAST"),
		LLMTimeout:         time.Duration(v.GetInt("LLM_TIMEOUT_MS")) * time.Millisecond,
		MaxSteps:           v.GetInt("MAX_STEPS"),
		MaxDuration:        time.Duration(v.GetInt("MAX_DURATION_MS")) * time.Millisecond,
		DefaultWorkspaceID: v.GetString("DEFAULT_WORKSPACE_ID"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}
}
