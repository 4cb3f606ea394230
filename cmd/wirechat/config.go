package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/wirechat/wirechat/memory"
	"github.com/wirechat/wirechat/model"
	"github.com/wirechat/wirechat/server"
)

// Config holds initialization parameters for all gateway subsystems. Each
// section delegates to that subsystem's config-driven constructor.
type Config struct {
	Server server.Config `json:"server"`
	Model  model.Config  `json:"model"`
	Memory memory.Config `json:"memory"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Server: server.DefaultConfig(),
		Model:  model.DefaultConfig(),
		Memory: memory.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Server.Merge(&source.Server)
	c.Model.Merge(&source.Model)
	c.Memory.Merge(&source.Memory)
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
