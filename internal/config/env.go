package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	EnvHome   = "HOSTBOOT_HOME"
	EnvTarget = "HOSTBOOT_TARGET"
	EnvDev    = "HOSTBOOT_DEV"
)

// ApplyEnv layers environment overrides on top of the file configuration.
// HOSTBOOT_HOME is consumed by path resolution, not here.
func (c *Config) ApplyEnv() {
	if target := strings.TrimSpace(os.Getenv(EnvTarget)); target != "" {
		c.Target = target
	}
	if raw, ok := os.LookupEnv(EnvDev); ok {
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			c.DevMode = v
		}
	}
}
