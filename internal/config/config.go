package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultErrorPrefix = "error:"
	DefaultUserAgent   = "hostboot/1.0"
	DefaultEventBuffer = 64
)

// Config captures the bootstrap settings read from <root>/config.yaml.
type Config struct {
	Version int `yaml:"version"`
	// Target overrides the detected target triple.
	Target      string        `yaml:"target,omitempty"`
	DevMode     bool          `yaml:"dev_mode"`
	ErrorPrefix string        `yaml:"error_prefix"`
	Mirrors     MirrorsConfig `yaml:"mirrors"`
	HostDir     string        `yaml:"host_dir,omitempty"`
	ScriptsDir  string        `yaml:"scripts_dir,omitempty"`
	UserAgent   string        `yaml:"user_agent"`
	EventBuffer int           `yaml:"event_buffer"`
}

// MirrorsConfig holds download URL templates. Empty values use the upstream
// release locations.
type MirrorsConfig struct {
	ManagerURL string `yaml:"manager_url,omitempty"`
	RuntimeURL string `yaml:"runtime_url,omitempty"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version:     1,
		ErrorPrefix: DefaultErrorPrefix,
		UserAgent:   DefaultUserAgent,
		EventBuffer: DefaultEventBuffer,
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills fields the YAML left empty.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.ErrorPrefix == "" {
		c.ErrorPrefix = defaults.ErrorPrefix
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = defaults.EventBuffer
	}
}

// Marshal renders the configuration back to YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
