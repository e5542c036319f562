package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrStorageUnavailable means the backing store cannot be reached or was
	// never initialised. Callers treat it as "no data available".
	ErrStorageUnavailable = errors.New("link store unavailable")

	// ErrInvalidLink rejects empty or over-long accounts and addresses
	ErrInvalidLink = errors.New("invalid link")

	ErrUserExists   = errors.New("username already exists")
	ErrUserNotFound = errors.New("user not found")
)

// QueryError describes a failed read or write against the store
type QueryError struct {
	Op          string // recordLink, addressesForAccount, ...
	Key         string // account or address the operation was keyed on
	Err         error
	Unavailable bool
}

func (e *QueryError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the driver error and, for connection-level
// failures, ErrStorageUnavailable
func (e *QueryError) Unwrap() []error {
	if e.Unavailable {
		return []error{ErrStorageUnavailable, e.Err}
	}
	return []error{e.Err}
}

func queryError(op, key string, err error) error {
	return &QueryError{Op: op, Key: key, Err: err, Unavailable: isUnavailable(err)}
}

// isUnavailable reports whether err is a connection-level failure rather
// than a problem with one statement
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// database/sql does not export its closed-pool error
	return strings.Contains(err.Error(), "sql: database is closed")
}

// isUniqueViolation detects unique constraint failures on either backend
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
