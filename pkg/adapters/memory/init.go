package memory

import (
	"log/slog"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

func init() {
	adapter.Register("memory", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
