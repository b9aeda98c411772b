package testutil

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// FakeObject is a property bag with a fixed property order.
type FakeObject struct {
	Names  []string
	Values map[string]any
}

// NewObject builds a FakeObject from name/value pairs.
func NewObject(pairs ...any) *FakeObject {
	o := &FakeObject{Values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		o.Names = append(o.Names, name)
		o.Values[name] = pairs[i+1]
	}
	return o
}

func (o *FakeObject) PropertyNames() []string { return append([]string(nil), o.Names...) }

func (o *FakeObject) Property(name string) (any, bool) {
	v, ok := o.Values[name]
	return v, ok
}

// FakeAdapter is a scripted core.Adapter that counts how it is used.
// Configure its fields before the first Open.
type FakeAdapter struct {
	// OpenErr fails every Open.
	OpenErr error
	// ExecErr fails every ExecQuery.
	ExecErr error
	// FetchErr is returned by Next once FailAfter objects have been yielded.
	FetchErr  error
	FailAfter int
	// Objects are yielded by every query.
	Objects []*FakeObject
	// Delay is slept inside every ExecQuery.
	Delay time.Duration
	// OpenDelay is slept inside every Open; a canceled Open fails with the
	// context's error.
	OpenDelay time.Duration

	opens     atomic.Int64
	execs     atomic.Int64
	closes    atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
	mu        sync.Mutex
	queries   []string
}

// Name returns "fake".
func (f *FakeAdapter) Name() string { return "fake" }

func (f *FakeAdapter) Connect(context.Context, core.AdapterConfig) error { return nil }

func (f *FakeAdapter) Close() error { return nil }

func (f *FakeAdapter) Open(ctx context.Context, ns core.Namespace) (core.Session, error) {
	f.opens.Add(1)
	if f.OpenDelay > 0 {
		select {
		case <-time.After(f.OpenDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return &fakeSession{adapter: f, ns: ns}, nil
}

// Opens returns how many sessions were requested.
func (f *FakeAdapter) Opens() int { return int(f.opens.Load()) }

// Execs returns how many queries were submitted.
func (f *FakeAdapter) Execs() int { return int(f.execs.Load()) }

// SessionCloses returns how many sessions were closed.
func (f *FakeAdapter) SessionCloses() int { return int(f.closes.Load()) }

// MaxActive returns the most result sets that were ever open at once.
func (f *FakeAdapter) MaxActive() int { return int(f.maxActive.Load()) }

// Queries returns the query texts received, in order.
func (f *FakeAdapter) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeSession struct {
	adapter *FakeAdapter
	ns      core.Namespace
}

func (s *fakeSession) ExecQuery(ctx context.Context, query string) (core.ObjectSet, error) {
	f := s.adapter
	f.execs.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.ExecErr != nil {
		return nil, f.ExecErr
	}

	n := f.active.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return &fakeSet{adapter: f}, nil
}

func (s *fakeSession) Close() error {
	s.adapter.closes.Add(1)
	return nil
}

type fakeSet struct {
	adapter *FakeAdapter
	pos     int
	closed  bool
}

func (o *fakeSet) Next(ctx context.Context) (core.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := o.adapter
	if f.FetchErr != nil && o.pos >= f.FailAfter {
		return nil, f.FetchErr
	}
	if o.closed || o.pos >= len(f.Objects) {
		return nil, io.EOF
	}
	obj := f.Objects[o.pos]
	o.pos++
	return obj, nil
}

func (o *fakeSet) Close() error {
	if !o.closed {
		o.closed = true
		o.adapter.active.Add(-1)
	}
	return nil
}
