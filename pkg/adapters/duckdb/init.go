package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
