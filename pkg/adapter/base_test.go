package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		expectErr bool
	}{
		{
			name:      "close with nil DB",
			setupDB:   false,
			expectErr: false,
		},
		{
			name:      "close with open DB",
			setupDB:   true,
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			err := base.Close()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.False(t, base.IsConnected())
		})
	}
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		expectErr bool
		errMsg    string
	}{
		{
			name:      "exec without connection",
			setupDB:   false,
			sql:       "SELECT 1",
			expectErr: true,
			errMsg:    "database connection not established",
		},
		{
			name:    "exec success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE SCHEMA root_cimv2").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql:       "CREATE SCHEMA root_cimv2",
			expectErr: false,
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: true,
			errMsg:    "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			err := base.Exec(ctx, tt.sql)
			if tt.expectErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseSQLAdapter_OpenSessionWithoutConnection(t *testing.T) {
	base := &BaseSQLAdapter{}
	_, err := base.OpenSession(context.Background(), nil, "root/cimv2", SessionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")
}

func TestBaseSQLAdapter_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`SET search_path TO root_cimv2`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM Win32_Processor`).WillReturnRows(
		sqlmock.NewRows([]string{"DeviceID", "Caption", "MaxClockSpeed"}).
			AddRow([]byte("CPU0"), "Intel64 Family 6", int64(3000)).
			AddRow([]byte("CPU1"), nil, int64(3000)),
	)
	mock.ExpectExec(`RESET search_path`).WillReturnResult(sqlmock.NewResult(0, 0))

	base := &BaseSQLAdapter{DB: db}
	sess, err := base.OpenSession(ctx, db, "root/cimv2", SessionOptions{
		Enter: []string{"SET search_path TO root_cimv2"},
		Leave: []string{"RESET search_path"},
	})
	require.NoError(t, err)

	set, err := sess.ExecQuery(ctx, "SELECT * FROM Win32_Processor")
	require.NoError(t, err)

	obj, err := set.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DeviceID", "Caption", "MaxClockSpeed"}, obj.PropertyNames())

	v, ok := obj.Property("DeviceID")
	require.True(t, ok)
	assert.Equal(t, "CPU0", v, "[]byte columns are converted to string")

	v, ok = obj.Property("maxclockspeed")
	require.True(t, ok, "property lookup falls back to case-insensitive match")
	assert.Equal(t, int64(3000), v)

	_, ok = obj.Property("NoSuchProperty")
	assert.False(t, ok)

	obj, err = set.Next(ctx)
	require.NoError(t, err)
	v, ok = obj.Property("Caption")
	require.True(t, ok)
	assert.Nil(t, v)

	_, err = set.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, set.Close())
	require.NoError(t, set.Close(), "closing twice is safe")
	require.NoError(t, sess.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_EnterFailureIsNamespaceFault(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`SET search_path`).WillReturnError(errors.New(`schema "root_nope" does not exist`))

	base := &BaseSQLAdapter{DB: db}
	_, err = base.OpenSession(ctx, db, "root/nope", SessionOptions{Enter: []string{"SET search_path TO root_nope"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidNamespace)
}

func TestBaseSQLAdapter_RowErrorMidIteration(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT`).WillReturnRows(
		sqlmock.NewRows([]string{"Name"}).
			AddRow("a").
			AddRow("b").
			RowError(1, errors.New("connection reset")),
	)

	base := &BaseSQLAdapter{DB: db}
	sess, err := base.OpenSession(ctx, db, "root/cimv2", SessionOptions{})
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	set, err := sess.ExecQuery(ctx, "SELECT Name FROM Win32_Service")
	require.NoError(t, err)
	defer func() { _ = set.Close() }()

	_, err = set.Next(ctx)
	require.NoError(t, err)

	_, err = set.Next(ctx)
	require.Error(t, err)
	var native *core.NativeError
	require.ErrorAs(t, err, &native)
	assert.Equal(t, "Next", native.Op)
	assert.Contains(t, native.Message, "connection reset")
}

func TestClassifySQLError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "sqlite syntax", err: errors.New(`SQL logic error: near "invalid": syntax error (1)`), want: core.ErrInvalidQuery},
		{name: "duckdb parser", err: errors.New(`Parser Error: syntax error at or near "invalid"`), want: core.ErrInvalidQuery},
		{name: "sqlite missing table", err: errors.New(`SQL logic error: no such table: Win32_Nope (1)`), want: core.ErrInvalidClass},
		{name: "duckdb catalog", err: errors.New(`Catalog Error: Table with name Win32_Nope does not exist!`), want: core.ErrInvalidClass},
		{name: "unclassified", err: errors.New("disk I/O error"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySQLError("ExecQuery", tt.err)
			var native *core.NativeError
			require.ErrorAs(t, got, &native)
			assert.Equal(t, "ExecQuery", native.Op)
			if tt.want == nil {
				assert.Nil(t, native.Err)
			} else {
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}

	assert.NoError(t, ClassifySQLError("ExecQuery", nil))
}

func TestCSVValue(t *testing.T) {
	assert.Nil(t, CSVValue(""))
	assert.Equal(t, int64(8), CSVValue("8"))
	assert.Equal(t, 2.5, CSVValue("2.5"))
	assert.Equal(t, "CPU0", CSVValue("CPU0"))
}

func TestLoadCSVRows_MissingFile(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = LoadCSVRows(context.Background(), db, "Win32_Processor", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open CSV file")
}

func TestLoadCSVRows_InsertsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.csv")
	require.NoError(t, os.WriteFile(path, []byte("DeviceID,NumberOfCores\nCPU0,8\nCPU1,\n"), 0o600))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS "Win32_Processor"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE "Win32_Processor"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "Win32_Processor"`).WithArgs("CPU0", int64(8)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO "Win32_Processor"`).WithArgs("CPU1", nil).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, LoadCSVRows(context.Background(), db, "Win32_Processor", path))
	assert.NoError(t, mock.ExpectationsWereMet())
}
