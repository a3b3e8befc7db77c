package llm

import (
	"time"

	"tdr-agent/internal/config"
)

// Config represents the configuration for one model client
type Config struct {
	// Provider selects the client implementation (openai, deepseek, openrouter, gemini)
	Provider string `json:"provider"`

	APIKey string `json:"api_key"`

	// Model is passed through unchanged, e.g. "deepseek/deepseek-chat"
	Model string `json:"model"`

	// BaseURL of an OpenAI-compatible endpoint. Empty uses the provider default.
	BaseURL string `json:"base_url"`

	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`

	// Referer and Title are sent as attribution headers to routed endpoints
	Referer string `json:"referer"`
	Title   string `json:"title"`

	Timeout time.Duration `json:"timeout"`
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Provider: config.DefaultProvider,
		Model:    config.DefaultModel,
		BaseURL:  config.DefaultModelBaseURL,
		Timeout:  30 * time.Second,
	}
}

// FromRuntime builds a client configuration from a runtime snapshot and the
// process model settings
func FromRuntime(rt config.Runtime, m config.ModelConfig) *Config {
	cfg := &Config{
		Provider:    rt.ModelProvider,
		APIKey:      rt.ModelAPIKey,
		Model:       rt.ModelName,
		BaseURL:     rt.ModelBaseURL,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		Referer:     m.Referer,
		Title:       m.Title,
		Timeout:     time.Duration(m.Timeout) * time.Second,
	}
	// the routed default only speaks the OpenAI protocol
	if cfg.Provider == config.ProviderGemini && cfg.BaseURL == config.DefaultModelBaseURL {
		cfg.BaseURL = ""
	}
	return cfg
}
