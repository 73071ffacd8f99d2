package llm

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds LLM provider configuration. API keys normally come from
// the environment rather than the config file.
type Config struct {
	// Provider is one of "anthropic", "openai", "gemini", "openrouter"
	// or "mock".
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Retry      RetryConfig      `yaml:"retry"`

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration `yaml:"timeout"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultConfig returns the mock provider with production retry and
// timeout settings. A real provider is selected by config or environment.
func DefaultConfig() Config {
	return Config{
		Provider:   "mock",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// ApplyEnv overlays ATTUNE_* environment variables onto c. When no
// provider is named it falls back to the first standard vendor key found.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Provider, "ATTUNE_LLM_PROVIDER")
	set(&c.Anthropic.APIKey, "ATTUNE_ANTHROPIC_API_KEY")
	set(&c.Anthropic.Model, "ATTUNE_ANTHROPIC_MODEL")
	set(&c.OpenAI.APIKey, "ATTUNE_OPENAI_API_KEY")
	set(&c.OpenAI.Model, "ATTUNE_OPENAI_MODEL")
	set(&c.OpenAI.BaseURL, "ATTUNE_OPENAI_BASE_URL")
	set(&c.Gemini.APIKey, "ATTUNE_GEMINI_API_KEY")
	set(&c.Gemini.Model, "ATTUNE_GEMINI_MODEL")
	set(&c.OpenRouter.APIKey, "ATTUNE_OPENROUTER_API_KEY")
	set(&c.OpenRouter.Model, "ATTUNE_OPENROUTER_MODEL")

	if os.Getenv("ATTUNE_LLM_PROVIDER") == "" && c.Provider == "mock" {
		c.discover()
	}
}

// discover probes the vendor key variables (Gemini, OpenAI, Anthropic,
// OpenRouter) and selects the first provider with a key.
func (c *Config) discover() {
	for _, d := range []struct {
		env, provider string
		key           *string
	}{
		{"GEMINI_API_KEY", "gemini", &c.Gemini.APIKey},
		{"OPENAI_API_KEY", "openai", &c.OpenAI.APIKey},
		{"ANTHROPIC_API_KEY", "anthropic", &c.Anthropic.APIKey},
		{"OPENROUTER_API_KEY", "openrouter", &c.OpenRouter.APIKey},
	} {
		if k := os.Getenv(d.env); k != "" {
			c.Provider = d.provider
			*d.key = k
			return
		}
	}
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	var key string
	switch c.Provider {
	case "anthropic":
		key = c.Anthropic.APIKey
	case "openai":
		key = c.OpenAI.APIKey
	case "gemini":
		key = c.Gemini.APIKey
	case "openrouter":
		key = c.OpenRouter.APIKey
	case "mock":
		return nil
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	var errs []error
	if key == "" {
		errs = append(errs, fmt.Errorf("an API key is required for the %s provider", c.Provider))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("llm retry max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}
