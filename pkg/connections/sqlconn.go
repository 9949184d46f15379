package connections

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

// OpenFunc matches sql.Open. Backends built on database/sql take one so
// tests can substitute a mock database.
type OpenFunc func(driverName, dataSourceName string) (*sql.DB, error)

// OpenError reports that the driver rejected the data source name before
// any network activity took place.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open: %v", e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// SQLConn is a Handle over a single dedicated database/sql connection.
type SQLConn struct {
	db     *sql.DB
	conn   *sql.Conn
	closed bool
}

// DialSQL opens dsn with the named driver, limits the pool to one
// connection and checks out that connection. Failures from open are
// returned as *OpenError; failures while connecting are returned raw.
func DialSQL(ctx context.Context, open OpenFunc, driverName, dsn string) (*SQLConn, error) {
	if open == nil {
		open = sql.Open
	}

	db, err := open(driverName, dsn)
	if err != nil {
		return nil, &OpenError{Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}

	return &SQLConn{db: db, conn: conn}, nil
}

// Conn returns the dedicated connection.
func (c *SQLConn) Conn() *sql.Conn {
	return c.conn
}

// DB returns the single-connection database the handle was dialed from.
func (c *SQLConn) DB() *sql.DB {
	return c.db
}

// IsClosed reports whether the handle was closed or the driver considers
// the connection invalid. Only local state is inspected.
func (c *SQLConn) IsClosed() bool {
	if c.closed {
		return true
	}

	valid := true
	err := c.conn.Raw(func(driverConn any) error {
		if v, ok := driverConn.(driver.Validator); ok {
			valid = v.IsValid()
		}
		return nil
	})
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	return !valid
}

// Close releases the connection and the database. Safe to call twice.
func (c *SQLConn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	connErr := c.conn.Close()
	dbErr := c.db.Close()
	return errors.Join(connErr, dbErr)
}
