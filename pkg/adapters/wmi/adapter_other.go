//go:build !windows

package wmi

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// Adapter is the WMI adapter on platforms without WMI. It connects so the
// bridge can start, and fails every Open with core.ErrNotSupported.
type Adapter struct {
	logger *slog.Logger
}

// New creates a WMI adapter. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger}
}

// Name returns "wmi".
func (a *Adapter) Name() string { return "wmi" }

// Connect succeeds without doing anything.
func (a *Adapter) Connect(_ context.Context, _ core.AdapterConfig) error {
	a.logger.Warn("wmi is unavailable on this platform; every query will fail")
	return nil
}

// Close does nothing.
func (a *Adapter) Close() error { return nil }

// Open always fails with core.ErrNotSupported.
func (a *Adapter) Open(_ context.Context, _ core.Namespace) (core.Session, error) {
	return nil, &core.NativeError{Op: "CoInitializeEx", Err: core.ErrNotSupported}
}

var _ core.Adapter = (*Adapter)(nil)
