// Package wmi provides the native Windows Management Instrumentation
// adapter. All COM calls run on one OS-locked goroutine. On other platforms
// the adapter reports core.ErrNotSupported.
package wmi

import (
	"log/slog"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

func init() {
	adapter.Register("wmi", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
