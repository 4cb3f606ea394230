package memory

import (
	"fmt"
	"time"
)

const (
	defaultWindowSize = 5
	defaultSessionTTL = 30 * time.Minute
)

// Config holds memory subsystem initialization parameters.
type Config struct {
	// Strategy selects the compaction strategy applied to every new session.
	Strategy Kind `json:"strategy,omitempty"`
	// WindowSize is the k parameter for window-based strategies: reads
	// surface at most 2·k turns.
	WindowSize int `json:"window_size,omitempty"`
	// SessionTTL is how long an idle session's memory is retained, as a
	// Go duration string. "0" disables eviction entirely.
	SessionTTL string `json:"session_ttl,omitempty"`
}

// DefaultConfig returns the default memory configuration: verbatim buffer,
// window size 5, 30 minute idle eviction.
func DefaultConfig() Config {
	return Config{
		Strategy:   KindBuffer,
		WindowSize: defaultWindowSize,
		SessionTTL: defaultSessionTTL.String(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Strategy != "" {
		c.Strategy = source.Strategy
	}
	if source.WindowSize > 0 {
		c.WindowSize = source.WindowSize
	}
	if source.SessionTTL != "" {
		c.SessionTTL = source.SessionTTL
	}
}

// validate checks the configuration and resolves the TTL.
func (c *Config) validate() (time.Duration, error) {
	if !c.Strategy.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, c.Strategy)
	}
	if c.WindowSize < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWindow, c.WindowSize)
	}

	if c.SessionTTL == "" {
		return defaultSessionTTL, nil
	}
	ttl, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session_ttl %q: %w", c.SessionTTL, err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("invalid session_ttl %q: must not be negative", c.SessionTTL)
	}
	return ttl, nil
}
