package exasol

import (
	"context"
	"errors"
	"strings"
	"syscall"

	_ "github.com/exasol/exasol-driver-go" // Exasol driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/apperrors"
	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
	"github.com/ekaya-inc/dbconnect/pkg/logging"
)

// DriverName is the database/sql driver registered by exasol-driver-go.
const DriverName = "exasol"

// Backend connects to Exasol through database/sql.
type Backend struct {
	config *config.ConnectionConfig
	open   connections.OpenFunc
	logger *zap.Logger
}

// NewBackend creates an Exasol backend. A nil open uses sql.Open.
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

// Connect opens one Exasol connection and maps driver failures to
// apperrors.ConnectionError.
func (b *Backend) Connect(ctx context.Context) (connections.Handle, error) {
	if err := ValidateAddress(b.config.DSN); err != nil {
		return nil, b.establishError(&connections.OpenError{Err: err})
	}

	dsn := BuildDSN(b.config)
	b.logger.Debug("connecting to exasol",
		zap.String("dsn", logging.SanitizeConnectionString(dsn)),
	)

	conn, err := connections.DialSQL(ctx, b.open, DriverName, dsn)
	if err != nil {
		return nil, b.establishError(err)
	}
	return conn, nil
}

// IsClosed reads the handle's own closed state.
func (b *Backend) IsClosed(h connections.Handle) bool {
	return h.IsClosed()
}

// establishError maps a driver failure to the taxonomy. First match wins.
func (b *Backend) establishError(err error) error {
	name, dsn := b.config.Name, b.config.DSN

	switch {
	case isBadDSN(err):
		return apperrors.NewConnectionEstablishError(name, err,
			apperrors.Reason("Bad dsn"), apperrors.DSN(dsn))
	case isAuthFailure(err):
		return apperrors.NewConnectionEstablishError(name, err,
			apperrors.Reason("Authentication failed"), apperrors.DSN(dsn), apperrors.User(b.config.User))
	case isConnectionRefused(err):
		return apperrors.NewConnectionEstablishError(name, err,
			apperrors.Reason("Connection refused"), apperrors.DSN(dsn))
	default:
		return apperrors.NewConnectionEstablishError(name, err, apperrors.DSN(dsn))
	}
}

func isBadDSN(err error) bool {
	var oe *connections.OpenError
	if errors.As(err, &oe) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid connection string") ||
		strings.Contains(msg, "invalid dsn")
}

// Exasol reports rejected logins with SQLSTATE 08004.
func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "[08004]") ||
		strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "login failed")
}

func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

var _ connections.Backend = (*Backend)(nil)
