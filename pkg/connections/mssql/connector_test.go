package mssql

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mssqldb "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/dbconnect/pkg/apperrors"
	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
)

func testConfig() *config.ConnectionConfig {
	return &config.ConnectionConfig{
		Name:     "sales",
		Kind:     "mssql",
		DSN:      "sql.internal:1433",
		User:     "reporter",
		Password: "p@ss:word",
		DBName:   "Sales",
		Params:   map[string]any{"encrypt": true, "connection timeout": 30},
	}
}

func TestBuildConnectionString(t *testing.T) {
	connStr, err := buildConnectionString(testConfig())
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "sql.internal:1433", u.Host)
	assert.Equal(t, "reporter", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pw)
	assert.Equal(t, "Sales", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "30", u.Query().Get("connection timeout"))
}

func TestBuildConnectionString_DefaultPortNoDatabase(t *testing.T) {
	cfg := &config.ConnectionConfig{DSN: "sql.internal", User: "u"}

	connStr, err := buildConnectionString(cfg)
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "sql.internal:1433", u.Host)
	assert.False(t, u.Query().Has("database"))
}

func TestSplitAddress_Invalid(t *testing.T) {
	for _, dsn := range []string{"", "h:abc", ":1433", "h1:1433,h2:1433", "h:0"} {
		_, _, err := splitAddress(dsn)
		assert.Error(t, err, "dsn %q", dsn)
	}
}

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	open := func(driverName, dsn string) (*sql.DB, error) {
		assert.Equal(t, DriverName, driverName)
		return db, nil
	}
	return NewBackend(testConfig(), open, zaptest.NewLogger(t)), mock
}

func TestBackend_Connect_Success(t *testing.T) {
	backend, mock := newMockBackend(t)
	mock.ExpectPing()
	mock.ExpectClose()

	c := connections.NewConnector(connections.KindMSSQL, testConfig(), backend, zaptest.NewLogger(t))
	ctx := context.Background()

	h, err := c.GetConnection(ctx)
	require.NoError(t, err)
	_, ok := h.(*connections.SQLConn)
	assert.True(t, ok)

	require.NoError(t, c.Close(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_Connect_LoginFailed(t *testing.T) {
	backend, mock := newMockBackend(t)
	loginErr := mssqldb.Error{Number: 18456, Message: "Login failed for user 'reporter'."}
	mock.ExpectPing().WillReturnError(loginErr)
	mock.ExpectClose()

	_, err := backend.Connect(context.Background())

	var connErr *apperrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, map[string]string{
		"reason": "Authentication failed",
		"dsn":    "sql.internal:1433",
		"user":   "reporter",
	}, connErr.Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_Connect_Refused(t *testing.T) {
	backend, mock := newMockBackend(t)
	mock.ExpectPing().WillReturnError(errors.New("unable to open tcp connection with host 'sql.internal:1433': dial tcp 10.1.1.1:1433: connect: connection refused"))
	mock.ExpectClose()

	_, err := backend.Connect(context.Background())

	var connErr *apperrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	reason, _ := connErr.Field(apperrors.FieldReason)
	assert.Equal(t, "Connection refused", reason)
}

func TestBackend_Connect_OtherError(t *testing.T) {
	backend, mock := newMockBackend(t)
	mock.ExpectPing().WillReturnError(mssqldb.Error{Number: 4060, Message: "Cannot open database"})
	mock.ExpectClose()

	_, err := backend.Connect(context.Background())

	var connErr *apperrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, map[string]string{"dsn": "sql.internal:1433"}, connErr.Fields)

	var sqlErr mssqldb.Error
	require.ErrorAs(t, err, &sqlErr)
	assert.EqualValues(t, 4060, sqlErr.Number)
}

func TestBackend_Connect_BadDSN(t *testing.T) {
	cfg := testConfig()
	cfg.DSN = "a:1,b:2"
	backend := NewBackend(cfg, nil, nil)

	_, err := backend.Connect(context.Background())

	var connErr *apperrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	reason, _ := connErr.Field(apperrors.FieldReason)
	assert.Equal(t, "Bad dsn", reason)
}
