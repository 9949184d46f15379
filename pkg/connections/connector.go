package connections

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/logging"
)

// Handle is a live database connection owned by a Connector.
// *pgx.Conn satisfies it directly.
type Handle interface {
	// IsClosed reports whether the connection is no longer usable.
	IsClosed() bool

	// Close releases the underlying resources.
	Close(ctx context.Context) error
}

// Backend establishes connections for one database kind.
type Backend interface {
	// Connect opens a new connection. Driver failures are returned as
	// *apperrors.ConnectionError.
	Connect(ctx context.Context) (Handle, error)

	// IsClosed is the liveness check for a handle returned by Connect.
	// It reads the driver's own closed flag and never touches the network.
	IsClosed(h Handle) bool
}

// Connector lazily establishes a single connection for one configuration
// and reuses it until it is found closed.
//
// A Connector is not safe for concurrent use. Two goroutines calling
// GetConnection on an empty connector may both establish a connection and
// the second one wins. Use one Connector per goroutine or guard it externally.
type Connector struct {
	id      uuid.UUID
	kind    Kind
	config  *config.ConnectionConfig
	backend Backend
	conn    Handle // nil until the first GetConnection and after Close
	logger  *zap.Logger
}

// NewConnector wraps a backend. Most callers use New, which selects the
// backend from cfg.Kind.
func NewConnector(kind Kind, cfg *config.ConnectionConfig, backend Backend, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return &Connector{
		id:      id,
		kind:    kind,
		config:  cfg,
		backend: backend,
		logger: logger.With(
			zap.String("connection", cfg.Name),
			zap.String("kind", string(kind)),
			zap.String("connectorID", id.String()),
		),
	}
}

// New creates a connector for cfg using the backend registered for cfg.Kind.
func New(cfg *config.ConnectionConfig, logger *zap.Logger) (*Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
	}

	factory := GetFactory(kind)
	if factory == nil {
		return nil, fmt.Errorf("connection %q: unsupported backend: %s (not compiled in)", cfg.Name, kind)
	}

	backend, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connection %q: create %s backend: %w", cfg.Name, kind, err)
	}

	return NewConnector(kind, cfg, backend, logger), nil
}

// Name returns the configuration name.
func (c *Connector) Name() string {
	return c.config.Name
}

// Kind returns the backend kind.
func (c *Connector) Kind() Kind {
	return c.kind
}

// GetConnection returns the cached connection if it is still open, otherwise
// establishes a new one and caches it. Establishment errors are returned
// unchanged and leave the cache as it was.
func (c *Connector) GetConnection(ctx context.Context) (Handle, error) {
	if c.conn != nil && !c.backend.IsClosed(c.conn) {
		c.logger.Debug("reusing open connection")
		return c.conn, nil
	}

	if c.conn != nil {
		c.logger.Info("cached connection closed, reconnecting")
	}

	conn, err := c.backend.Connect(ctx)
	if err != nil {
		c.logger.Error("failed to establish connection", logging.Error(err))
		return nil, err
	}

	c.conn = conn
	c.logger.Info("established connection")
	return c.conn, nil
}

// IsConnectionClosed reports whether the cached connection is closed.
// An empty connector reports true.
func (c *Connector) IsConnectionClosed() bool {
	if c.conn == nil {
		return true
	}
	return c.backend.IsClosed(c.conn)
}

// Close releases the cached connection. It is a no-op when nothing is
// cached and safe to call repeatedly. The cache is cleared even when the
// driver's close fails; that error is returned as-is.
func (c *Connector) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	if err := conn.Close(ctx); err != nil {
		c.logger.Warn("error closing connection", logging.Error(err))
		return err
	}

	c.logger.Debug("closed connection")
	return nil
}
