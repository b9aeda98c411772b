package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from AdapterConfig.Params using mapstructure.
type Params struct {
	// Extensions to install and load before the mirror is queried
	// (e.g. "json" for classes loaded from JSON exports).
	Extensions []string `mapstructure:"extensions"`

	// Settings applied with SET at connect time (e.g. memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`

	// ReadOnly opens a file-backed mirror with access_mode=READ_ONLY.
	ReadOnly bool `mapstructure:"read_only"`
}

// ParseParams decodes adapter params. Nil or empty input yields zero Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := mapstructure.Decode(raw, p); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
