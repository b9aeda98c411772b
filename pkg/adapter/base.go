package adapter

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for mirror
// adapters: SQL databases laid out as one schema per namespace and one
// table per class. Embed this struct in concrete adapter implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// Classify maps driver errors onto the native fault vocabulary.
	// ClassifySQLError is used when nil.
	Classify func(op string, err error) error
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLAdapter) classify(op string, err error) error {
	if b.Classify != nil {
		return b.Classify(op, err)
	}
	return ClassifySQLError(op, err)
}

// SessionOptions controls how OpenSession prepares a dedicated connection.
type SessionOptions struct {
	// Enter statements run once on the connection before any query,
	// typically to select the namespace schema.
	Enter []string
	// Leave statements run before the connection returns to the pool.
	Leave []string
	// OwnsDB closes db together with the session.
	OwnsDB bool
}

// OpenSession pins a connection from db for one namespace session.
func (b *BaseSQLAdapter) OpenSession(ctx context.Context, db *sql.DB, ns core.Namespace, opts SessionOptions) (core.Session, error) {
	if db == nil {
		return nil, &core.NativeError{Op: "Open", Message: "database connection not established"}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		if opts.OwnsDB {
			_ = db.Close()
		}
		return nil, b.classify("Open", err)
	}

	for _, stmt := range opts.Enter {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			if opts.OwnsDB {
				_ = db.Close()
			}
			return nil, &core.NativeError{Op: "Open", Message: err.Error(), Err: core.ErrInvalidNamespace}
		}
	}

	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &SQLSession{
		conn:     conn,
		leave:    opts.Leave,
		classify: b.classify,
		logger:   logger.With(slog.String("namespace", ns.String())),
	}
	if opts.OwnsDB {
		s.db = db
	}
	return s, nil
}

// SQLSession is a core.Session over a pinned database connection.
type SQLSession struct {
	conn     *sql.Conn
	db       *sql.DB
	leave    []string
	classify func(op string, err error) error
	logger   *slog.Logger
}

// ExecQuery runs the WQL text as SQL, unmodified.
func (s *SQLSession) ExecQuery(ctx context.Context, query string) (core.ObjectSet, error) {
	s.logger.Debug("executing query", slog.String("query", query))

	//nolint:rowserrcheck // rows.Err() is checked by RowSet.Next
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, s.classify("ExecQuery", err)
	}

	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, s.classify("ExecQuery", err)
	}

	return &RowSet{rows: rows, cols: cols}, nil
}

// Close restores the connection state and releases it.
func (s *SQLSession) Close() error {
	var errs []error
	for _, stmt := range s.leave {
		if _, err := s.conn.ExecContext(context.Background(), stmt); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, s.conn.Close())
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// RowSet adapts *sql.Rows to core.ObjectSet.
type RowSet struct {
	rows   *sql.Rows
	cols   []string
	closed bool
}

// Next scans the next row into an object.
func (r *RowSet) Next(_ context.Context) (core.Object, error) {
	if r.closed {
		return nil, io.EOF
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, &core.NativeError{Op: "Next", Message: err.Error()}
		}
		return nil, io.EOF
	}

	values := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, &core.NativeError{Op: "Next", Message: err.Error()}
	}
	for i, v := range values {
		// Drivers hand back text columns as []byte.
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}

	return &RowObject{names: r.cols, values: values}, nil
}

// Close releases the underlying rows.
func (r *RowSet) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rows.Close()
}

// RowObject is one scanned row.
type RowObject struct {
	names  []string
	values []any
}

// NewRowObject builds a row object from parallel name and value slices.
func NewRowObject(names []string, values []any) *RowObject {
	return &RowObject{names: names, values: values}
}

// PropertyNames returns the column names in select order.
func (o *RowObject) PropertyNames() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Property returns a column value. Names match exactly first, then
// case-insensitively, as WMI property names do.
func (o *RowObject) Property(name string) (any, bool) {
	for i, n := range o.names {
		if n == name {
			return o.values[i], true
		}
	}
	for i, n := range o.names {
		if strings.EqualFold(n, name) {
			return o.values[i], true
		}
	}
	return nil, false
}

// ClassifySQLError maps common SQL engine messages onto native sentinels.
// Adapters with structured error codes should supply their own Classify.
func ClassifySQLError(op string, err error) error {
	if err == nil {
		return nil
	}
	var native *core.NativeError
	if errors.As(err, &native) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	ne := &core.NativeError{Op: op, Message: msg}
	switch {
	case strings.Contains(lower, "syntax error"),
		strings.Contains(lower, "parser error"),
		strings.Contains(lower, "incomplete input"):
		ne.Err = core.ErrInvalidQuery
	case strings.Contains(lower, "no such table"),
		strings.Contains(lower, "no such column"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "catalog error"),
		strings.Contains(lower, "binder error"):
		ne.Err = core.ErrInvalidClass
	}
	return ne
}

// LoadCSVRows creates table from the CSV header and inserts every row.
// Empty fields become NULL; integer and float fields are stored as numbers.
func LoadCSVRows(ctx context.Context, db *sql.DB, table, filePath string) error {
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

	quoted := make([]string, len(headers))
	placeholders := make([]string, len(headers))
	for i, h := range headers {
		quoted[i] = QuoteIdent(strings.TrimSpace(h))
		placeholders[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	//nolint:gosec // identifiers are quoted
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV row: %w", err)
		}
		args := make([]any, len(record))
		for i, field := range record {
			args[i] = CSVValue(field)
		}
		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	return tx.Commit()
}

// CSVValue converts one CSV field: empty becomes nil, then int64, then
// float64, else the text itself.
func CSVValue(field string) any {
	if field == "" {
		return nil
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return f
	}
	return field
}
