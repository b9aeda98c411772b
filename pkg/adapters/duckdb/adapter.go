// Package duckdb provides a DuckDB mirror adapter: each namespace is a
// schema ("root/cimv2" is root_cimv2) and each class is a table in it.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements core.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Name returns "duckdb".
func (a *Adapter) Name() string { return "duckdb" }

// Connect establishes a connection to DuckDB.
// Use ":memory:" (or an empty path) for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	dsn := path
	if params.ReadOnly && path != ":memory:" {
		dsn += "?access_mode=READ_ONLY"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	for _, ext := range params.Extensions {
		if err := a.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for k, v := range params.Settings {
		if err := a.Exec(ctx, fmt.Sprintf("SET %s = '%s'", k, escapeLiteral(v))); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	return nil
}

// Open pins a connection and selects the namespace's schema on it.
func (a *Adapter) Open(ctx context.Context, ns core.Namespace) (core.Session, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema, err := adapter.SchemaName(ns)
	if err != nil {
		return nil, err
	}

	var n int
	err = a.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?", schema).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("failed to look up schema: %w", err)
	}
	if n == 0 {
		return nil, &core.NativeError{
			Op:      "Open",
			Message: fmt.Sprintf("schema %s not found", schema),
			Err:     core.ErrInvalidNamespace,
		}
	}

	return a.OpenSession(ctx, a.DB, ns, adapter.SessionOptions{
		Enter: []string{fmt.Sprintf("SET schema = '%s'", schema)},
		Leave: []string{"SET schema = 'main'"},
	})
}

// Namespaces lists every schema that looks like a mirrored namespace.
func (a *Adapter) Namespaces(ctx context.Context) ([]core.Namespace, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := a.DB.QueryContext(ctx,
		"SELECT DISTINCT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'root%' ORDER BY schema_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Namespace
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		out = append(out, adapter.NamespaceFromSchema(schema))
	}
	return out, rows.Err()
}

// LoadCSV loads a CSV file as the instances of class in ns.
// DuckDB will automatically infer the column types from the CSV file.
func (a *Adapter) LoadCSV(ctx context.Context, ns core.Namespace, class, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	schema, err := adapter.SchemaName(ns)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+adapter.QuoteIdent(schema)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s.%s AS SELECT * FROM read_csv_auto('%s', header=true)",
		adapter.QuoteIdent(schema),
		adapter.QuoteIdent(class),
		escapeLiteral(absPath),
	)
	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	return nil
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var (
	_ core.Adapter         = (*Adapter)(nil)
	_ core.Seeder          = (*Adapter)(nil)
	_ core.NamespaceLister = (*Adapter)(nil)
)
