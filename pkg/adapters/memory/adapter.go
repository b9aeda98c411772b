// Package memory provides an in-process adapter that answers WQL data
// queries from a YAML fixture. It backs tests, demos, and the bridge on
// platforms without a native management subsystem.
package memory

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// WBEM status codes reported by the fixture engine.
const (
	codeFailed           uint32 = 0x80041001
	codeInvalidClass     uint32 = 0x80041010
	codeInvalidNamespace uint32 = 0x8004100E
	codeInvalidQuery     uint32 = 0x80041017
)

// Options are the memory adapter's params from adapter.params.
type Options struct {
	// FaultClasses lists classes whose enumeration fails part-way through.
	FaultClasses []string `mapstructure:"fault_classes"`
	// FaultAfter is how many objects a faulting class yields before failing.
	FaultAfter int `mapstructure:"fault_after"`
}

// Stats counts adapter activity.
type Stats struct {
	Opens   int64
	Queries int64
}

// Adapter serves queries from a Fixture.
type Adapter struct {
	logger *slog.Logger

	mu      sync.RWMutex
	fixture *Fixture
	opts    Options
	path    string
	closed  bool

	opens   atomic.Int64
	queries atomic.Int64
}

// New creates a memory adapter. Connect loads the fixture.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger}
}

// NewWithFixture creates a memory adapter serving f. Connect keeps f unless
// the config names a fixture file.
func NewWithFixture(f *Fixture, logger *slog.Logger) *Adapter {
	a := New(logger)
	a.fixture = f
	return a
}

// Name returns "memory".
func (a *Adapter) Name() string { return "memory" }

// Connect loads cfg.Path as the fixture, or the built-in fixture when no
// path is configured and none was supplied.
func (a *Adapter) Connect(_ context.Context, cfg core.AdapterConfig) error {
	var opts Options
	if len(cfg.Params) > 0 {
		if err := mapstructure.Decode(cfg.Params, &opts); err != nil {
			return fmt.Errorf("invalid memory adapter params: %w", err)
		}
	}

	fixture := a.current()
	switch {
	case cfg.Path != "":
		f, err := LoadFixture(cfg.Path)
		if err != nil {
			return err
		}
		fixture = f
	case fixture == nil:
		fixture = DefaultFixture()
	}

	a.mu.Lock()
	a.fixture = fixture
	a.opts = opts
	a.path = cfg.Path
	a.closed = false
	a.mu.Unlock()

	a.logger.Debug("memory adapter connected",
		slog.String("fixture", cmp.Or(cfg.Path, "built-in")),
		slog.Int("namespaces", len(fixture.namespaces)))
	return nil
}

// Reload re-reads the fixture file given to Connect. Open sessions see the
// new fixture from their next query; a broken file leaves the old one in
// place.
func (a *Adapter) Reload() error {
	a.mu.RLock()
	path := a.path
	a.mu.RUnlock()
	if path == "" {
		return nil
	}

	f, err := LoadFixture(path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.fixture = f
	a.mu.Unlock()
	a.logger.Info("fixture reloaded", slog.String("path", path))
	return nil
}

// FixturePath returns the fixture file in use, or "" for the built-in one.
func (a *Adapter) FixturePath() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.path
}

// Close marks the adapter closed. Later Opens fail.
func (a *Adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

// Stats returns activity counters.
func (a *Adapter) Stats() Stats {
	return Stats{Opens: a.opens.Load(), Queries: a.queries.Load()}
}

func (a *Adapter) current() *Fixture {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fixture
}

// Namespaces lists the namespaces the fixture defines.
func (a *Adapter) Namespaces(_ context.Context) ([]core.Namespace, error) {
	f := a.current()
	if f == nil {
		return nil, fmt.Errorf("memory adapter not connected")
	}
	return f.Namespaces(), nil
}

// Open binds a session to ns.
func (a *Adapter) Open(_ context.Context, ns core.Namespace) (core.Session, error) {
	a.mu.RLock()
	fixture, opts, closed := a.fixture, a.opts, a.closed
	a.mu.RUnlock()

	if closed || fixture == nil {
		return nil, fmt.Errorf("memory adapter not connected")
	}

	key := canonicalNamespace(string(ns))
	if _, ok := fixture.namespaces[key]; !ok {
		return nil, &core.NativeError{
			Op:      "ConnectServer",
			Code:    codeInvalidNamespace,
			Message: fmt.Sprintf("invalid namespace %q", ns),
			Err:     core.ErrInvalidNamespace,
		}
	}

	a.opens.Add(1)
	return &session{adapter: a, opts: opts, ns: key}, nil
}

// LoadCSV replaces the instances of class in ns with the rows of a CSV file.
func (a *Adapter) LoadCSV(_ context.Context, ns core.Namespace, class, filePath string) error {
	file, err := os.Open(filePath) //nolint:gosec // filePath is supplied by the operator
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	cls := &Class{Name: class}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV row: %w", err)
		}
		values := make([]any, len(row))
		for i, field := range row {
			values[i] = adapter.CSVValue(field)
		}
		cls.addInstance(NewInstance(headers, values))
	}
	if len(cls.Properties) == 0 {
		cls.Properties = headers
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.fixture.clone()
	next.AddNamespace(string(ns))
	next.namespaces[canonicalNamespace(string(ns))][strings.ToLower(class)] = cls
	a.fixture = next
	return nil
}

// =============================================================================
// Session
// =============================================================================

type session struct {
	adapter *Adapter
	opts    Options
	ns      core.Namespace
	closed  bool
}

func (s *session) ExecQuery(_ context.Context, query string) (core.ObjectSet, error) {
	if s.closed {
		return nil, fmt.Errorf("session closed")
	}
	s.adapter.queries.Add(1)

	stmt, err := parseWQL(query)
	if err != nil {
		return nil, &core.NativeError{
			Op:      "ExecQuery",
			Code:    codeInvalidQuery,
			Message: err.Error(),
			Err:     core.ErrInvalidQuery,
		}
	}

	cls, nsOK, ok := s.adapter.current().class(s.ns, stmt.Class)
	if !nsOK {
		return nil, &core.NativeError{
			Op:      "ExecQuery",
			Code:    codeInvalidNamespace,
			Message: fmt.Sprintf("namespace %q no longer exists", s.ns),
			Err:     core.ErrInvalidNamespace,
		}
	}
	if !ok {
		return nil, &core.NativeError{
			Op:      "ExecQuery",
			Code:    codeInvalidClass,
			Message: fmt.Sprintf("invalid class %q", stmt.Class),
			Err:     core.ErrInvalidClass,
		}
	}

	columns := cls.Properties
	if !stmt.Star {
		columns = make([]string, len(stmt.Properties))
		for i, p := range stmt.Properties {
			columns[i] = cls.property(p)
			if columns[i] == "" && len(cls.Properties) > 0 {
				return nil, invalidProperty(p)
			}
			if columns[i] == "" {
				columns[i] = p
			}
		}
	}
	if len(cls.Properties) > 0 {
		for _, p := range stmt.whereProperties() {
			if cls.property(p) == "" {
				return nil, invalidProperty(p)
			}
		}
	}

	set := &objectSet{cls: cls, where: stmt.Where, columns: columns, faultAt: -1}
	for _, c := range s.opts.FaultClasses {
		if strings.EqualFold(c, cls.Name) {
			set.faultAt = s.opts.FaultAfter
		}
	}
	return set, nil
}

func invalidProperty(name string) error {
	return &core.NativeError{
		Op:      "ExecQuery",
		Code:    codeInvalidQuery,
		Message: fmt.Sprintf("invalid property %q", name),
		Err:     core.ErrInvalidQuery,
	}
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

// =============================================================================
// Enumeration
// =============================================================================

type objectSet struct {
	cls     *Class
	where   *orExpr
	columns []string
	pos     int
	yielded int
	faultAt int
	closed  bool
}

func (o *objectSet) Next(ctx context.Context) (core.Object, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if o.closed || o.pos >= len(o.cls.Instances) {
			return nil, io.EOF
		}
		if o.faultAt >= 0 && o.yielded >= o.faultAt {
			return nil, &core.NativeError{Op: "Next", Code: codeFailed, Message: "generic failure"}
		}

		inst := o.cls.Instances[o.pos]
		o.pos++
		if o.where != nil && !o.where.eval(o.lookup(inst)) {
			continue
		}
		o.yielded++
		return &object{cls: o.cls, inst: inst, columns: o.columns}, nil
	}
}

func (o *objectSet) lookup(inst *Instance) lookupFunc {
	return func(name string) any {
		return inst.get(name)
	}
}

func (o *objectSet) Close() error {
	o.closed = true
	return nil
}

type object struct {
	cls     *Class
	inst    *Instance
	columns []string
}

func (o *object) PropertyNames() []string {
	out := make([]string, len(o.columns))
	copy(out, o.columns)
	return out
}

// Property resolves name case-insensitively. Every projected property
// exists; one the instance never set reads as nil.
func (o *object) Property(name string) (any, bool) {
	for _, c := range o.columns {
		if strings.EqualFold(c, name) {
			return o.inst.get(c), true
		}
	}
	return nil, false
}
