// Package postgres provides a PostgreSQL mirror adapter. Each namespace is
// a schema ("root/cimv2" is root_cimv2) and each class is a table in it.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// PostgreSQL SQLSTATE codes the adapter classifies.
const (
	codeSyntaxError       = "42601"
	codeUndefinedTable    = "42P01"
	codeUndefinedColumn   = "42703"
	codeInvalidSchemaName = "3F000"
)

// Adapter implements core.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classify: classifyPgError},
	}
}

// Name returns "postgres".
func (a *Adapter) Name() string { return "postgres" }

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg core.AdapterConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if app, ok := cfg.Options["application_name"]; ok {
		dsn += fmt.Sprintf(" application_name=%s", app)
	}

	return dsn
}

// Open pins a connection with search_path set to the namespace schema.
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
		"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1", schema).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("failed to look up schema: %w", err)
	}
	if n == 0 {
		return nil, &core.NativeError{
			Op:      "Open",
			Code:    sqlstate(codeInvalidSchemaName),
			Message: fmt.Sprintf("schema %s does not exist", schema),
			Err:     core.ErrInvalidNamespace,
		}
	}

	return a.OpenSession(ctx, a.DB, ns, adapter.SessionOptions{
		Enter: []string{"SET search_path TO " + adapter.QuoteIdent(schema)},
		Leave: []string{"RESET search_path"},
	})
}

// Namespaces lists every schema that looks like a mirrored namespace.
func (a *Adapter) Namespaces(ctx context.Context) ([]core.Namespace, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := a.DB.QueryContext(ctx,
		"SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'root%' ORDER BY schema_name")
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

// classifyPgError maps SQLSTATE codes onto native sentinels, falling back
// to message matching for errors that carry no code.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return adapter.ClassifySQLError(op, err)
	}

	ne := &core.NativeError{Op: op, Code: sqlstate(pgErr.Code), Message: pgErr.Message}
	switch pgErr.Code {
	case codeSyntaxError, codeUndefinedColumn:
		ne.Err = core.ErrInvalidQuery
	case codeUndefinedTable:
		ne.Err = core.ErrInvalidClass
	case codeInvalidSchemaName:
		ne.Err = core.ErrInvalidNamespace
	}
	return ne
}

// sqlstate packs a five-character SQLSTATE into a status code, six bits
// per character, so it can travel in NativeError.Code.
func sqlstate(code string) uint32 {
	var out uint32
	for i := 0; i < len(code) && i < 5; i++ {
		c := code[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'A' && c <= 'Z':
			v = c - 'A' + 10
		}
		out = out<<6 | uint32(v)
	}
	return out
}

// LoadCSV loads a CSV file as the instances of class in ns using COPY FROM
// STDIN. All columns are created as TEXT.
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

	file, err := os.Open(absPath) //nolint:gosec // absPath is derived from operator-provided filePath
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	headers, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	table := adapter.QuoteIdent(schema) + "." + adapter.QuoteIdent(class)
	if err := a.createTextTable(ctx, schema, table, headers); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}

	if err := a.copyFromCSV(ctx, table, file); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}

	return nil
}

// createTextTable creates or replaces a table with all TEXT columns.
func (a *Adapter) createTextTable(ctx context.Context, schema, table string, columns []string) error {
	if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+adapter.QuoteIdent(schema)); err != nil {
		return err
	}
	if err := a.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}

	colDefs := make([]string, len(columns))
	for i, col := range columns {
		colDefs[i] = adapter.QuoteIdent(strings.TrimSpace(col)) + " TEXT"
	}
	return a.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(colDefs, ", ")))
}

// copyFromCSV streams the file through the pgx connection's COPY protocol.
func (a *Adapter) copyFromCSV(ctx context.Context, table string, file *os.File) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", table)
		_, err := pgxConn.Conn().PgConn().CopyFrom(ctx, file, copySQL)
		return err
	})
}

var (
	_ core.Adapter         = (*Adapter)(nil)
	_ core.Seeder          = (*Adapter)(nil)
	_ core.NamespaceLister = (*Adapter)(nil)
)
