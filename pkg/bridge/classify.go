package bridge

import (
	"context"
	"errors"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// Each pipeline stage fails with exactly one kind, except that a subsystem
// that cannot run at all is a fault wherever it is discovered.

func classifyOpen(ns core.Namespace, err error) error {
	if core.KindOf(err) != 0 {
		return err
	}
	switch {
	case errors.Is(err, core.ErrNotSupported), errors.Is(err, errConnectorClosed):
		return core.NewError(core.SubsystemFault, err, "management subsystem unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return core.NewError(core.SubsystemFault, err, "connecting to namespace %q interrupted", ns)
	}
	return core.NewError(core.NamespaceError, err, "failed to connect to namespace %q", ns)
}

func classifyExec(ns core.Namespace, err error) error {
	if core.KindOf(err) != 0 {
		return err
	}
	switch {
	case errors.Is(err, core.ErrInvalidNamespace):
		return core.NewError(core.NamespaceError, err, "invalid namespace %q", ns)
	case errors.Is(err, core.ErrNotSupported):
		return core.NewError(core.SubsystemFault, err, "management subsystem unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return core.NewError(core.SubsystemFault, err, "query interrupted")
	}
	return core.NewError(core.QueryError, err, "query rejected")
}

// classifyFetch classifies a Next failure. Semisynchronous subsystems report
// a rejected query on the first Next rather than from ExecQuery.
func classifyFetch(err error, first bool) error {
	if core.KindOf(err) != 0 {
		return err
	}
	if first && isQueryFault(err) {
		return core.NewError(core.QueryError, err, "query rejected")
	}
	return core.NewError(core.SubsystemFault, err, "failed while reading results")
}

// isQueryFault reports whether err only condemns the query text, leaving
// the session that ran it usable.
func isQueryFault(err error) bool {
	return errors.Is(err, core.ErrInvalidQuery) || errors.Is(err, core.ErrInvalidClass)
}
