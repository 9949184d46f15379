package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/dbconnect/pkg/apperrors"
	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
)

type stubConn struct {
	connString string
	closed     bool
}

func (c *stubConn) IsClosed() bool { return c.closed }

func (c *stubConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

// stubDialer fails for any address whose host is listed in failures.
type stubDialer struct {
	failures map[string]error
	calls    []string
	conns    []*stubConn
}

func (d *stubDialer) dial(ctx context.Context, connString string) (connections.Handle, error) {
	d.calls = append(d.calls, connString)
	for host, err := range d.failures {
		if strings.HasPrefix(connString, "host="+host+" ") {
			return nil, err
		}
	}
	c := &stubConn{connString: connString}
	d.conns = append(d.conns, c)
	return c, nil
}

func testConfig(dsn string) *config.ConnectionConfig {
	return &config.ConnectionConfig{
		Name:     "orders",
		Kind:     "postgres",
		DSN:      dsn,
		User:     "app",
		Password: "s3cret",
	}
}

func TestBackend_Connect_ConnString(t *testing.T) {
	cfg := testConfig("db1:5432")
	cfg.DBName = "orders"
	cfg.Password = `it's\here`
	cfg.Params = map[string]any{"sslmode": "disable", "connect_timeout": 5}

	d := &stubDialer{}
	backend := NewBackend(cfg, d.dial, zaptest.NewLogger(t))

	_, err := backend.Connect(context.Background())
	require.NoError(t, err)

	require.Len(t, d.calls, 1)
	assert.Equal(t,
		`host=db1 port=5432 user='app' password='it\'s\\here' dbname='orders' connect_timeout='5' sslmode='disable'`,
		d.calls[0])
}

func TestBackend_Connect_OmitsUnsetDBName(t *testing.T) {
	d := &stubDialer{}
	backend := NewBackend(testConfig("db1:5432"), d.dial, nil)

	_, err := backend.Connect(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, d.calls[0], "dbname")
}

func TestBackend_Connect_FailoverToSecond(t *testing.T) {
	firstErr := errors.New("dial tcp: connection refused")
	d := &stubDialer{failures: map[string]error{"primary": firstErr}}
	backend := NewBackend(testConfig("primary:5432, replica:5433"), d.dial, zaptest.NewLogger(t))

	h, err := backend.Connect(context.Background())
	require.NoError(t, err)

	require.Len(t, d.calls, 2)
	require.Len(t, d.conns, 1)
	assert.Same(t, d.conns[0], h)
	assert.True(t, strings.HasPrefix(h.(*stubConn).connString, "host=replica port=5433 "))
}

func TestBackend_Connect_AllFail(t *testing.T) {
	firstErr := errors.New("first: no route to host")
	lastErr := errors.New("second: password authentication failed")
	d := &stubDialer{failures: map[string]error{"a": firstErr, "b": lastErr}}
	cfg := testConfig("a:1, b:2")
	cfg.DBName = "orders"
	backend := NewBackend(cfg, d.dial, zaptest.NewLogger(t))

	h, err := backend.Connect(context.Background())
	assert.Nil(t, h)

	var connErr *apperrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, apperrors.KindConnectionEstablish, connErr.Kind)
	assert.Equal(t, "orders", connErr.Name)
	assert.Equal(t, map[string]string{
		"dsn":    "a:1, b:2",
		"user":   "app",
		"dbname": "orders",
	}, connErr.Fields)

	assert.ErrorIs(t, err, lastErr, "error is chained from the last attempt")
	assert.NotErrorIs(t, err, firstErr, "earlier failures are discarded")
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestBackend_Connect_LaterSuccessReplacesEarlier(t *testing.T) {
	d := &stubDialer{}
	backend := NewBackend(testConfig("a:1,b:2"), d.dial, zaptest.NewLogger(t))

	h, err := backend.Connect(context.Background())
	require.NoError(t, err)

	require.Len(t, d.conns, 2, "every address is attempted")
	assert.Same(t, d.conns[1], h)
	assert.True(t, d.conns[0].closed, "superseded connection is released")
	assert.False(t, d.conns[1].closed)
}

func TestBackend_Connect_LaterFailureKeepsEarlierSuccess(t *testing.T) {
	d := &stubDialer{failures: map[string]error{"b": errors.New("refused")}}
	backend := NewBackend(testConfig("a:1,b:2"), d.dial, zaptest.NewLogger(t))

	h, err := backend.Connect(context.Background())
	require.NoError(t, err)

	require.Len(t, d.calls, 2)
	require.Len(t, d.conns, 1)
	assert.Same(t, d.conns[0], h)
	assert.False(t, d.conns[0].closed)
}

func TestBackend_Connect_MalformedAddressIsRaw(t *testing.T) {
	d := &stubDialer{}
	backend := NewBackend(testConfig("a:1, broken"), d.dial, nil)

	_, err := backend.Connect(context.Background())
	require.Error(t, err)

	var connErr *apperrors.ConnectionError
	assert.False(t, errors.As(err, &connErr), "parse failures are not translated")
	assert.Empty(t, d.calls, "no address is attempted")
}

func TestBackend_WithConnector_DeadHandle(t *testing.T) {
	d := &stubDialer{}
	cfg := testConfig("a:1")
	c := connections.NewConnector(connections.KindPostgres, cfg,
		NewBackend(cfg, d.dial, nil), zaptest.NewLogger(t))
	ctx := context.Background()

	h1, err := c.GetConnection(ctx)
	require.NoError(t, err)
	h1.(*stubConn).closed = true

	h2, err := c.GetConnection(ctx)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
	assert.Len(t, d.calls, 2)

	require.NoError(t, c.Close(ctx))
	assert.True(t, h2.IsClosed())
}
