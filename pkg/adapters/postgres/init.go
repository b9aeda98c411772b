package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
