// Package bridge answers management queries: it validates a call, resolves
// its namespace, runs the query through a core.Adapter and marshals the
// objects into records. Every failure is a *core.BridgeError of one kind.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/panjf2000/ants/v2"
)

// Observer is told the outcome of every call. kind is 0 on success.
type Observer interface {
	ObserveQuery(ns core.Namespace, kind core.ErrorKind, records int, elapsed time.Duration)
}

// Config configures a Bridge.
type Config struct {
	// Adapter is a connected subsystem adapter. The caller keeps ownership.
	Adapter core.Adapter
	Logger  *slog.Logger

	// AllowedNamespaces restricts queries to these namespaces. Empty allows all.
	AllowedNamespaces []string

	// CacheSessions reuses one session per namespace across calls.
	CacheSessions bool

	// Workers bounds how many queries touch the subsystem at once.
	// Zero runs each query on the calling goroutine.
	Workers int

	Observer Observer
}

// Bridge is safe for concurrent use.
type Bridge struct {
	adapter   core.Adapter
	connector *Connector
	pool      *ants.Pool
	logger    *slog.Logger
	observer  Observer
}

// New creates a Bridge over cfg.Adapter.
func New(cfg Config) (*Bridge, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("bridge requires an adapter")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be non-negative, got %d", cfg.Workers)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &Bridge{
		adapter: cfg.Adapter,
		connector: NewConnector(cfg.Adapter, ConnectorOptions{
			Allowed:       cfg.AllowedNamespaces,
			CacheSessions: cfg.CacheSessions,
			Logger:        logger,
		}),
		logger:   logger,
		observer: cfg.Observer,
	}

	if cfg.Workers > 0 {
		pool, err := ants.NewPool(cfg.Workers,
			ants.WithLogger(poolLogger{logger}),
			ants.WithPanicHandler(func(v any) {
				logger.Error("query worker panic", slog.Any("panic", v))
			}))
		if err != nil {
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
		b.pool = pool
	}
	return b, nil
}

// Query validates its arguments and runs the query. properties may be nil
// (every property) or a sequence of property names.
func (b *Bridge) Query(ctx context.Context, namespace, query, properties any) (core.ResultSet, error) {
	req, err := Validate(namespace, query, properties)
	if err != nil {
		b.observe("", err, 0, 0)
		return nil, err
	}
	return b.Execute(ctx, req)
}

// QueryArgs is Query over a positional argument list of two or three values.
func (b *Bridge) QueryArgs(ctx context.Context, args ...any) (core.ResultSet, error) {
	req, err := ValidateArgs(args...)
	if err != nil {
		b.observe("", err, 0, 0)
		return nil, err
	}
	return b.Execute(ctx, req)
}

// Execute runs an already-typed request.
func (b *Bridge) Execute(ctx context.Context, req core.QueryRequest) (core.ResultSet, error) {
	start := time.Now()
	if err := checkRequest(req); err != nil {
		b.observe("", err, 0, 0)
		return nil, err
	}

	ns := ResolveNamespace(req.Namespace)
	props := dedupe(req.Properties)
	all := !req.HasProperties || len(props) == 0

	var (
		rs  core.ResultSet
		err error
	)
	if b.pool == nil {
		rs, err = b.run(ctx, ns, req.Query, props, all)
	} else {
		rs, err = b.submit(ctx, ns, req.Query, props, all)
	}

	elapsed := time.Since(start)
	b.observe(ns, err, len(rs), elapsed)
	if err != nil {
		b.logger.Debug("query failed",
			slog.String("namespace", ns.String()),
			slog.String("kind", core.KindOf(err).String()),
			slog.Duration("elapsed", elapsed))
		return nil, err
	}
	b.logger.Debug("query complete",
		slog.String("namespace", ns.String()),
		slog.Int("records", len(rs)),
		slog.Duration("elapsed", elapsed))
	return rs, nil
}

// submit hands the query to the worker pool and waits for it. Submitted
// work runs to completion even if the caller gives up.
func (b *Bridge) submit(ctx context.Context, ns core.Namespace, query string, props []string, all bool) (core.ResultSet, error) {
	var (
		rs   core.ResultSet
		err  error
		done = make(chan struct{})
	)
	task := func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				rs, err = nil, core.NewError(core.SubsystemFault, nil, "query worker panic: %v", r)
			}
		}()
		rs, err = b.run(ctx, ns, query, props, all)
	}
	if perr := b.pool.Submit(task); perr != nil {
		return nil, core.NewError(core.SubsystemFault, perr, "query workers unavailable")
	}
	<-done
	return rs, err
}

func (b *Bridge) run(ctx context.Context, ns core.Namespace, query string, props []string, all bool) (core.ResultSet, error) {
	h, err := b.connector.Execute(ctx, ns, query)
	if err != nil {
		return nil, err
	}

	rs, err := Marshal(ctx, h.Objects, props, all)
	if err != nil && !errors.Is(err, core.QueryError) {
		h.Fail()
	}
	if cerr := h.Close(); cerr != nil {
		b.logger.Warn("failed to release session",
			slog.String("namespace", ns.String()),
			slog.String("error", cerr.Error()))
	}
	return rs, err
}

func (b *Bridge) observe(ns core.Namespace, err error, records int, elapsed time.Duration) {
	if b.observer == nil {
		return
	}
	b.observer.ObserveQuery(ns, core.KindOf(err), records, elapsed)
}

// Namespaces lists the namespaces callers may query: the adapter's own
// namespaces when it can list them, narrowed by the allowlist.
func (b *Bridge) Namespaces(ctx context.Context) ([]core.Namespace, error) {
	lister, ok := b.adapter.(core.NamespaceLister)
	if !ok {
		out := make([]core.Namespace, 0, len(b.connector.allowed))
		for ns := range b.connector.allowed {
			out = append(out, ns)
		}
		slices.Sort(out)
		return out, nil
	}

	all, err := lister.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	out := make([]core.Namespace, 0, len(all))
	for _, ns := range all {
		ns = ResolveNamespace(string(ns))
		if b.connector.Allows(ns) {
			out = append(out, ns)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Close releases cached sessions and stops the worker pool. The adapter is
// left open.
func (b *Bridge) Close() error {
	err := b.connector.Close()
	if b.pool != nil {
		if perr := b.pool.ReleaseTimeout(3 * time.Second); perr != nil {
			b.logger.Warn("worker pool did not drain", slog.String("error", perr.Error()))
		}
	}
	return err
}

// poolLogger routes ants diagnostics into slog.
type poolLogger struct{ logger *slog.Logger }

func (l poolLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}
