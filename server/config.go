package server

import (
	"fmt"
	"time"
)

const (
	defaultAddr              = ":8080"
	defaultWriteTimeout      = 10 * time.Second
	defaultPingInterval      = 30 * time.Second
	defaultCompactionTimeout = 30 * time.Second
	defaultMaxMessageBytes   = 1 << 20
)

// Config holds server initialization parameters. Durations are Go duration
// strings so the config file stays plain JSON.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `json:"addr,omitempty"`
	// WriteTimeout bounds each outbound frame write.
	WriteTimeout string `json:"write_timeout,omitempty"`
	// PingInterval is the keepalive ping period; a peer that misses two
	// intervals is considered gone.
	PingInterval string `json:"ping_interval,omitempty"`
	// CompactionTimeout bounds the post-generation memory write.
	CompactionTimeout string `json:"compaction_timeout,omitempty"`
	// MaxMessageBytes caps inbound frame size.
	MaxMessageBytes int64 `json:"max_message_bytes,omitempty"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              defaultAddr,
		WriteTimeout:      defaultWriteTimeout.String(),
		PingInterval:      defaultPingInterval.String(),
		CompactionTimeout: defaultCompactionTimeout.String(),
		MaxMessageBytes:   defaultMaxMessageBytes,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.WriteTimeout != "" {
		c.WriteTimeout = source.WriteTimeout
	}
	if source.PingInterval != "" {
		c.PingInterval = source.PingInterval
	}
	if source.CompactionTimeout != "" {
		c.CompactionTimeout = source.CompactionTimeout
	}
	if source.MaxMessageBytes > 0 {
		c.MaxMessageBytes = source.MaxMessageBytes
	}
}

// timeouts is the parsed form of the duration fields.
type timeouts struct {
	write      time.Duration
	ping       time.Duration
	compaction time.Duration
}

func (c *Config) validate() (timeouts, error) {
	parsed := timeouts{
		write:      defaultWriteTimeout,
		ping:       defaultPingInterval,
		compaction: defaultCompactionTimeout,
	}

	fields := []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"write_timeout", c.WriteTimeout, &parsed.write},
		{"ping_interval", c.PingInterval, &parsed.ping},
		{"compaction_timeout", c.CompactionTimeout, &parsed.compaction},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return timeouts{}, fmt.Errorf("invalid %s %q: %w", field.name, field.value, err)
		}
		if d <= 0 {
			return timeouts{}, fmt.Errorf("invalid %s %q: must be positive", field.name, field.value)
		}
		*field.out = d
	}
	return parsed, nil
}
