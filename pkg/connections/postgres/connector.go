package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/apperrors"
	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
	"github.com/ekaya-inc/dbconnect/pkg/logging"
)

// DialFunc opens a single connection from a libpq keyword/value string.
type DialFunc func(ctx context.Context, connString string) (connections.Handle, error)

// Dial is the default DialFunc backed by pgx.
func Dial(ctx context.Context, connString string) (connections.Handle, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Backend connects to PostgreSQL with multi-host failover.
type Backend struct {
	config *config.ConnectionConfig
	dial   DialFunc
	logger *zap.Logger
}

// NewBackend creates a PostgreSQL backend. A nil dial uses Dial.
func NewBackend(cfg *config.ConnectionConfig, dial DialFunc, logger *zap.Logger) *Backend {
	if dial == nil {
		dial = Dial
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		config: cfg,
		dial:   dial,
		logger: logger,
	}
}

// Connect tries every configured address in order and keeps the last
// connection that succeeded. It does not stop at the first success: a later
// success replaces an earlier one, which is closed. When no address accepts
// the connection the returned error wraps only the last failure.
//
// A malformed address fails before any attempt and is returned unwrapped.
func (b *Backend) Connect(ctx context.Context) (connections.Handle, error) {
	addrs, err := ParseAddresses(b.config.DSN)
	if err != nil {
		return nil, err
	}

	var dbname string
	if b.config.HasDBName() {
		dbname = b.config.DBName
	}

	var conn connections.Handle
	var lastErr error
	for _, addr := range addrs {
		c, err := b.dial(ctx, b.connString(addr, dbname))
		if err != nil {
			b.logger.Warn("postgres connection attempt failed",
				zap.String("address", addr),
				logging.Error(err),
			)
			lastErr = err
			continue
		}

		if conn != nil {
			b.logger.Debug("replacing earlier connection with later address", zap.String("address", addr))
			if err := conn.Close(ctx); err != nil {
				b.logger.Warn("failed to close superseded connection", logging.Error(err))
			}
		}
		conn = c
	}

	if conn == nil {
		return nil, apperrors.NewConnectionEstablishError(b.config.Name, lastErr,
			apperrors.DSN(b.config.DSN),
			apperrors.User(b.config.User),
			apperrors.DBName(dbname),
		)
	}
	return conn, nil
}

// IsClosed reads the handle's own closed state; for pgx this is
// (*pgx.Conn).IsClosed.
func (b *Backend) IsClosed(h connections.Handle) bool {
	return h.IsClosed()
}

// connString appends credentials, database and backend params to an
// address produced by ParseAddresses.
func (b *Backend) connString(addr, dbname string) string {
	var sb strings.Builder
	sb.WriteString(addr)
	writeKeyword(&sb, "user", b.config.User)
	writeKeyword(&sb, "password", b.config.Password)
	if dbname != "" {
		writeKeyword(&sb, "dbname", dbname)
	}

	keys := make([]string, 0, len(b.config.Params))
	for k := range b.config.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeKeyword(&sb, k, fmt.Sprint(b.config.Params[k]))
	}
	return sb.String()
}

// writeKeyword appends a single-quoted libpq keyword/value pair.
func writeKeyword(sb *strings.Builder, key, value string) {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	fmt.Fprintf(sb, " %s='%s'", key, value)
}

var _ connections.Backend = (*Backend)(nil)
