package config

import "runtime"

// Default configuration values.
const (
	DefaultAddr      = "127.0.0.1:8765"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultWorkers   = 0
	DefaultPgPort    = 5432
)

// DefaultAdapterType is the native subsystem where it exists and the
// built-in fixture elsewhere.
func DefaultAdapterType() string {
	if runtime.GOOS == "windows" {
		return "wmi"
	}
	return "memory"
}

// ApplyAdapterDefaults fills type-specific defaults.
func ApplyAdapterDefaults(a *AdapterConfig) {
	if a == nil {
		return
	}
	if a.Type == "" {
		a.Type = DefaultAdapterType()
	}
	if a.Type == "postgres" && a.Port == 0 {
		a.Port = DefaultPgPort
	}
}
