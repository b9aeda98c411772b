// Package config loads wqlbridge CLI configuration.
//
// Values are layered with koanf, lowest to highest precedence: built-in
// defaults, wqlbridge.yaml, WQLBRIDGE_* environment variables, then flags.
package config

import (
	"slices"

	intconfig "github.com/leapstack-labs/wqlbridge/internal/config"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
)

// AdapterConfig is the shared adapter configuration.
type AdapterConfig = intconfig.AdapterConfig

// Config holds all CLI configuration options.
type Config struct {
	Adapter *AdapterConfig `koanf:"adapter"`

	// Namespaces is the namespace allowlist. Empty allows every namespace.
	Namespaces       []string `koanf:"namespaces"`
	CacheConnections bool     `koanf:"cache_connections"`
	Workers          int      `koanf:"workers"`

	Log          intconfig.LogConfig    `koanf:"log"`
	OutputFormat string                 `koanf:"output"`
	Server       intconfig.ServerConfig `koanf:"server"`

	Environment  string               `koanf:"environment"`
	Environments map[string]EnvConfig `koanf:"environments"`
	Verbose      bool                 `koanf:"verbose"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Adapter    *AdapterConfig `koanf:"adapter"`
	Namespaces []string       `koanf:"namespaces"`
}

// Output formats for query results.
const (
	OutputAuto     = "auto" // TTY=table, non-TTY=json
	OutputTable    = "table"
	OutputJSON     = "json"
	OutputCSV      = "csv"
	OutputMarkdown = "markdown"
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []string{OutputAuto, OutputTable, OutputJSON, OutputCSV, OutputMarkdown}

// Default configuration values.
const (
	DefaultOutput = OutputAuto
	DefaultEnv    = ""
)

// DefaultNamespaces returns the default allowlist.
func DefaultNamespaces() []string {
	return slices.Clone(bridge.DefaultNamespaces)
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	a := &AdapterConfig{}
	intconfig.ApplyAdapterDefaults(a)
	return &Config{
		Adapter:      a,
		Namespaces:   DefaultNamespaces(),
		Workers:      intconfig.DefaultWorkers,
		Log:          intconfig.LogConfig{Level: intconfig.DefaultLogLevel, Format: intconfig.DefaultLogFormat},
		OutputFormat: DefaultOutput,
		Server:       intconfig.ServerConfig{Addr: intconfig.DefaultAddr},
	}
}
