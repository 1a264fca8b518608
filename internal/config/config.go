// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by FromEnv
const EnvPrefix = "AUTODAVESAVE_"

// SaveAllCommandID is the host menu command for File > Save All
const SaveAllCommandID = 41007

// Config holds the embedding host configuration.
// Autosave state is not configurable; it always starts from fixed defaults.
type Config struct {
	Server  ServerConfig
	Host    HostConfig
	Logging LoggingConfig
}

// ServerConfig configures the MCP control surface
type ServerConfig struct {
	Name          string
	Version       string
	Address       string
	Port          int
	TransportMode string
}

// HostConfig configures the editor control endpoint used for dispatch
type HostConfig struct {
	Address        string
	Port           int
	SaveAllCommand int
	QueueSize      int
	RequestTimeout time.Duration
}

// LoggingConfig configures logging output
type LoggingConfig struct {
	Level    string
	FilePath string
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:          "autodavesave",
			Version:       "dev",
			Address:       "localhost",
			Port:          8080,
			TransportMode: "stdio",
		},
		Host: HostConfig{
			Address:        "localhost",
			Port:           8787,
			SaveAllCommand: SaveAllCommandID,
			QueueSize:      16,
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// FromEnv overrides cfg with AUTODAVESAVE_* environment variables.
// Malformed numeric values are ignored.
func FromEnv(cfg *Config) {
	if v, ok := lookup("SERVER_ADDRESS"); ok {
		cfg.Server.Address = v
	}
	if v, ok := lookupInt("SERVER_PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := lookup("SERVER_TRANSPORT"); ok {
		cfg.Server.TransportMode = v
	}
	if v, ok := lookup("HOST_ADDRESS"); ok {
		cfg.Host.Address = v
	}
	if v, ok := lookupInt("HOST_PORT"); ok {
		cfg.Host.Port = v
	}
	if v, ok := lookupInt("HOST_SAVE_ALL_COMMAND"); ok {
		cfg.Host.SaveAllCommand = v
	}
	if v, ok := lookupInt("HOST_QUEUE_SIZE"); ok {
		cfg.Host.QueueSize = v
	}
	if v, ok := lookup("HOST_REQUEST_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Host.RequestTimeout = d
		}
	}
	if v, ok := lookup("LOGGING_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookup("LOGGING_FILE"); ok {
		cfg.Logging.FilePath = v
	}
}

// Validate checks the configuration for values the harness cannot run with
func (c *Config) Validate() error {
	switch c.Server.TransportMode {
	case "stdio", "sse":
	default:
		return fmt.Errorf("invalid transport mode %q: must be stdio or sse", c.Server.TransportMode)
	}
	if c.Server.TransportMode == "sse" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Host.Port < 1 || c.Host.Port > 65535 {
		return fmt.Errorf("invalid host port %d", c.Host.Port)
	}
	if c.Host.SaveAllCommand <= 0 {
		return fmt.Errorf("invalid save-all command id %d", c.Host.SaveAllCommand)
	}
	if c.Host.QueueSize < 1 {
		return fmt.Errorf("dispatch queue size must be positive, got %d", c.Host.QueueSize)
	}
	if c.Host.RequestTimeout <= 0 {
		return fmt.Errorf("host request timeout must be positive, got %s", c.Host.RequestTimeout)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func lookupInt(key string) (int, bool) {
	v, ok := lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
