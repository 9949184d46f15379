package mssql

import (
	"context"
	"errors"
	"strings"
	"syscall"

	mssqldb "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/apperrors"
	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
	"github.com/ekaya-inc/dbconnect/pkg/logging"
)

// DriverName is the database/sql driver registered by go-mssqldb.
const DriverName = "sqlserver"

// errLoginFailed is the SQL Server error number for a rejected login.
const errLoginFailed = 18456

// Backend connects to SQL Server with SQL authentication.
type Backend struct {
	config *config.ConnectionConfig
	open   connections.OpenFunc
	logger *zap.Logger
}

// NewBackend creates a SQL Server backend. A nil open uses sql.Open.
func NewBackend(cfg *config.ConnectionConfig, open connections.OpenFunc, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		config: cfg,
		open:   open,
		logger: logger,
	}
}

func (b *Backend) Connect(ctx context.Context) (connections.Handle, error) {
	connStr, err := buildConnectionString(b.config)
	if err != nil {
		return nil, b.establishError(&connections.OpenError{Err: err})
	}

	b.logger.Debug("connecting to sql server",
		zap.String("dsn", logging.SanitizeConnectionString(connStr)),
	)

	conn, err := connections.DialSQL(ctx, b.open, DriverName, connStr)
	if err != nil {
		return nil, b.establishError(err)
	}
	return conn, nil
}

func (b *Backend) IsClosed(h connections.Handle) bool {
	return h.IsClosed()
}

func (b *Backend) establishError(err error) error {
	name, dsn := b.config.Name, b.config.DSN

	var oe *connections.OpenError
	var sqlErr mssqldb.Error
	switch {
	case errors.As(err, &oe):
		return apperrors.NewConnectionEstablishError(name, err,
			apperrors.Reason("Bad dsn"), apperrors.DSN(dsn))
	case errors.As(err, &sqlErr) && sqlErr.Number == errLoginFailed:
		return apperrors.NewConnectionEstablishError(name, err,
			apperrors.Reason("Authentication failed"), apperrors.DSN(dsn), apperrors.User(b.config.User))
	case errors.Is(err, syscall.ECONNREFUSED),
		strings.Contains(strings.ToLower(err.Error()), "connection refused"):
		return apperrors.NewConnectionEstablishError(name, err,
			apperrors.Reason("Connection refused"), apperrors.DSN(dsn))
	default:
		return apperrors.NewConnectionEstablishError(name, err, apperrors.DSN(dsn))
	}
}

var _ connections.Backend = (*Backend)(nil)
