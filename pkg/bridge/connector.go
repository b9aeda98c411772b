package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"golang.org/x/sync/singleflight"
)

var errConnectorClosed = errors.New("connector closed")

// ConnectorOptions configures a Connector.
type ConnectorOptions struct {
	// Allowed restricts the namespaces that may be queried. Empty allows all.
	Allowed []string
	// CacheSessions keeps one session open per namespace for reuse.
	CacheSessions bool
	Logger        *slog.Logger
}

// Connector opens namespace sessions on an adapter and runs queries on them.
//
// With caching enabled it owns one session per namespace. A cached session
// is locked for the whole life of the Handle using it, so two calls on the
// same namespace never interleave their enumerations. Calls on different
// namespaces run independently.
type Connector struct {
	adapter core.Adapter
	allowed map[core.Namespace]bool
	cache   bool
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[core.Namespace]*cachedSession
	closed   bool
	opening  singleflight.Group
}

type cachedSession struct {
	mu      sync.Mutex
	sess    core.Session
	retired bool
}

// NewConnector returns a Connector over a connected adapter.
func NewConnector(a core.Adapter, opts ConnectorOptions) *Connector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Connector{
		adapter:  a,
		cache:    opts.CacheSessions,
		logger:   logger,
		sessions: make(map[core.Namespace]*cachedSession),
	}
	if len(opts.Allowed) > 0 {
		c.allowed = make(map[core.Namespace]bool, len(opts.Allowed))
		for _, ns := range opts.Allowed {
			c.allowed[ResolveNamespace(ns)] = true
		}
	}
	return c
}

// Allows reports whether ns passes the allowlist.
func (c *Connector) Allows(ns core.Namespace) bool {
	return c.allowed == nil || c.allowed[ns]
}

// Handle is an accepted query. Objects must be drained or abandoned, and
// Close must always be called.
type Handle struct {
	Objects core.ObjectSet

	once    sync.Once
	faulted bool
	release func(faulted bool) error
}

// Fail marks the session behind h as unusable. A cached session is
// discarded when h closes.
func (h *Handle) Fail() { h.faulted = true }

// Close releases the result set and the session.
func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		err = errors.Join(h.Objects.Close(), h.release(h.faulted))
	})
	return err
}

// Execute submits query to namespace ns.
func (c *Connector) Execute(ctx context.Context, ns core.Namespace, query string) (*Handle, error) {
	if !c.Allows(ns) {
		return nil, core.NewError(core.NamespaceError, nil, "unsupported namespace %q", ns)
	}

	sess, release, err := c.acquire(ctx, ns)
	if err != nil {
		return nil, classifyOpen(ns, err)
	}

	set, err := sess.ExecQuery(ctx, query)
	if err != nil {
		_ = release(!isQueryFault(err))
		c.logger.Debug("query rejected",
			slog.String("namespace", ns.String()),
			slog.String("error", err.Error()))
		return nil, classifyExec(ns, err)
	}

	return &Handle{Objects: set, release: release}, nil
}

// acquire returns a session for ns and the function that gives it back.
func (c *Connector) acquire(ctx context.Context, ns core.Namespace) (core.Session, func(bool) error, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, errConnectorClosed
	}

	if !c.cache {
		sess, err := c.adapter.Open(ctx, ns)
		if err != nil {
			return nil, nil, err
		}
		return sess, func(bool) error { return sess.Close() }, nil
	}

	for {
		entry, err := c.cached(ctx, ns)
		if err != nil {
			return nil, nil, err
		}

		entry.mu.Lock()
		if entry.retired {
			// Discarded while we waited; open or find a fresh one.
			entry.mu.Unlock()
			continue
		}

		release := func(faulted bool) error {
			defer entry.mu.Unlock()
			if !faulted {
				return nil
			}
			return c.retire(ns, entry)
		}
		return entry.sess, release, nil
	}
}

// cached returns the cached session entry for ns, opening it once no matter
// how many callers ask at the same time.
func (c *Connector) cached(ctx context.Context, ns core.Namespace) (*cachedSession, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errConnectorClosed
	}
	if e, ok := c.sessions[ns]; ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	// The open is shared by every waiter, so it must outlive any one of them.
	openCtx := context.WithoutCancel(ctx)
	ch := c.opening.DoChan(string(ns), func() (any, error) {
		c.mu.Lock()
		if e, ok := c.sessions[ns]; ok {
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		sess, err := c.adapter.Open(openCtx, ns)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = sess.Close()
			return nil, errConnectorClosed
		}
		e := &cachedSession{sess: sess}
		c.sessions[ns] = e
		c.logger.Debug("namespace session cached", slog.String("namespace", ns.String()))
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cachedSession), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// retire drops a cached session after a fault. The caller holds entry.mu.
func (c *Connector) retire(ns core.Namespace, entry *cachedSession) error {
	c.mu.Lock()
	if c.sessions[ns] == entry {
		delete(c.sessions, ns)
	}
	c.mu.Unlock()

	entry.retired = true
	c.logger.Debug("namespace session discarded", slog.String("namespace", ns.String()))
	if err := entry.sess.Close(); err != nil {
		return fmt.Errorf("failed to close session for %s: %w", ns, err)
	}
	return nil
}

// Cached returns the namespaces that currently hold a cached session.
func (c *Connector) Cached() []core.Namespace {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Namespace, 0, len(c.sessions))
	for ns := range c.sessions {
		out = append(out, ns)
	}
	return out
}

// Close releases every cached session, waiting for calls that hold one.
// Later Executes with caching enabled fail.
func (c *Connector) Close() error {
	c.mu.Lock()
	c.closed = true
	entries := c.sessions
	c.sessions = make(map[core.Namespace]*cachedSession)
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		if !e.retired {
			e.retired = true
			errs = append(errs, e.sess.Close())
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}
