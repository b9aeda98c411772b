// Package sqlite provides a SQLite mirror adapter backed by a directory of
// database files, one per namespace: root/cimv2 lives in root_cimv2.db and
// each class is a table in that file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

const fileExt = ".db"

// Adapter implements core.Adapter over a directory of SQLite files.
type Adapter struct {
	adapter.BaseSQLAdapter
	dir string
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Name returns "sqlite".
func (a *Adapter) Name() string { return "sqlite" }

// Connect checks that cfg.Path is a directory. Set options.create to
// "true" to create it when missing.
func (a *Adapter) Connect(_ context.Context, cfg core.AdapterConfig) error {
	if cfg.Path == "" {
		return fmt.Errorf("sqlite adapter requires adapter.path to name a directory")
	}

	info, err := os.Stat(cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && cfg.Options["create"] == "true":
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return fmt.Errorf("failed to create mirror directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to open mirror directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("sqlite mirror path %s is not a directory", cfg.Path)
	}

	a.Logger.Debug("sqlite mirror ready", slog.String("dir", cfg.Path))
	a.dir = cfg.Path
	a.Cfg = cfg
	return nil
}

// Close forgets the directory. Sessions own their database handles.
func (a *Adapter) Close() error {
	a.dir = ""
	return a.BaseSQLAdapter.Close()
}

func (a *Adapter) dbPath(ns core.Namespace) (string, error) {
	if a.dir == "" {
		return "", fmt.Errorf("database connection not established")
	}
	schema, err := adapter.SchemaName(ns)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.dir, schema+fileExt), nil
}

// Open opens the namespace's database file read-only.
func (a *Adapter) Open(ctx context.Context, ns core.Namespace) (core.Session, error) {
	path, err := a.dbPath(ns)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &core.NativeError{
			Op:      "Open",
			Message: fmt.Sprintf("no mirror database for %s", ns),
			Err:     core.ErrInvalidNamespace,
		}
	}

	db, err := sql.Open("sqlite", dsn(path, true))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return a.OpenSession(ctx, db, ns, adapter.SessionOptions{
		Enter:  []string{"PRAGMA query_only = ON"},
		OwnsDB: true,
	})
}

// dsn builds a modernc file: URI.
func dsn(path string, readOnly bool) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		q.Set("mode", "ro")
	}
	return "file:" + filepath.ToSlash(path) + "?" + q.Encode()
}

// Namespaces lists the namespaces that have a database file.
func (a *Adapter) Namespaces(_ context.Context) ([]core.Namespace, error) {
	if a.dir == "" {
		return nil, fmt.Errorf("database connection not established")
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list mirror directory: %w", err)
	}

	var out []core.Namespace
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || !strings.HasPrefix(name, "root") {
			continue
		}
		out = append(out, adapter.NamespaceFromSchema(strings.TrimSuffix(name, fileExt)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// LoadCSV creates or replaces the class table in the namespace's database
// file, creating the file if needed.
func (a *Adapter) LoadCSV(ctx context.Context, ns core.Namespace, class, filePath string) error {
	path, err := a.dbPath(ns)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dsn(path, false))
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := adapter.LoadCSVRows(ctx, db, class, filePath); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

var (
	_ core.Adapter         = (*Adapter)(nil)
	_ core.Seeder          = (*Adapter)(nil)
	_ core.NamespaceLister = (*Adapter)(nil)
)
