package model

import (
	"fmt"
	"time"
)

const (
	// DefaultBaseURL targets DashScope's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

	defaultModel   = "qwen-plus"
	defaultTimeout = 60 * time.Second
)

// Config holds model client initialization parameters. APIKey is normally
// injected from the environment by the entrypoint rather than written into
// a config file.
type Config struct {
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
	APIKey  string `json:"-"`
	// Timeout bounds non-streaming calls (completion, compaction), as a Go
	// duration string. Streaming calls are bounded by their request context
	// instead.
	Timeout string `json:"timeout,omitempty"`
}

// DefaultConfig returns the default model configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Model:   defaultModel,
		Timeout: defaultTimeout.String(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.Timeout != "" {
		c.Timeout = source.Timeout
	}
}

func (c *Config) validate() (time.Duration, error) {
	if c.APIKey == "" {
		return 0, ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return 0, fmt.Errorf("base_url must not be empty")
	}

	if c.Timeout == "" {
		return defaultTimeout, nil
	}
	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", c.Timeout)
	}
	return timeout, nil
}
