// Package config provides the configuration types shared by the CLI and the
// HTTP server: which adapter to connect, how to log, and where to listen.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// AdapterConfig selects and configures the management subsystem adapter.
type AdapterConfig struct {
	Type string `koanf:"type"` // wmi, memory, sqlite, duckdb, postgres

	// Path is a fixture file (memory), a namespace directory (sqlite) or a
	// database file (duckdb).
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g. memory fault injection, DuckDB extensions)
	Params map[string]any `koanf:"params"`
}

// Validate checks the adapter type against the adapter registry.
func (a *AdapterConfig) Validate() error {
	if a.Type == "" {
		return fmt.Errorf("adapter type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(a.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      a.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ToCore converts to the adapter connection config.
func (a *AdapterConfig) ToCore() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     strings.ToLower(a.Type),
		Path:     a.Path,
		Host:     a.Host,
		Port:     a.Port,
		Database: a.Database,
		Username: a.User,
		Password: a.Password,
		Options:  a.Options,
		Params:   a.Params,
	}
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// ServerConfig configures `wqlbridge serve`.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// Watch reloads the memory adapter's fixture file when it changes.
	Watch bool `koanf:"watch"`
}
