package session

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
)

// ConnectionErrorKind classifies why a session could not be established.
type ConnectionErrorKind string

const (
	ConnTimeout    ConnectionErrorKind = "timeout"
	ConnRefused    ConnectionErrorKind = "refused"
	ConnAuthFailed ConnectionErrorKind = "auth_failed"
)

// ConnectionError reports a failed session establishment.
type ConnectionError struct {
	Kind     ConnectionErrorKind
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is a transient establishment error
// that the open path may retry exactly once. Authentication failures are
// never retryable.
func (e *ConnectionError) Retryable() bool {
	return e.Kind == ConnTimeout || e.Kind == ConnRefused
}

// QueryErrorKind classifies a failed statement.
type QueryErrorKind string

const (
	QueryTimeout        QueryErrorKind = "timeout"
	QueryServerError    QueryErrorKind = "server_error"
	QueryConnectionLost QueryErrorKind = "connection_lost"
)

// QueryError reports a statement that failed mid-run. Mid-query errors are
// never retried; the runner records them as per-check failures.
type QueryError struct {
	Kind QueryErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: %s: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// MySQL access-denied error numbers treated as authentication failures.
var authErrNumbers = map[uint16]struct{}{
	1044: {}, // ER_DBACCESS_DENIED_ERROR
	1045: {}, // ER_ACCESS_DENIED_ERROR
	1698: {}, // ER_ACCESS_DENIED_NO_PASSWORD_ERROR
	3118: {}, // ER_ACCOUNT_HAS_BEEN_LOCKED
}

func classifyConnError(endpoint string, err error) *ConnectionError {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if _, ok := authErrNumbers[myErr.Number]; ok {
			return &ConnectionError{Kind: ConnAuthFailed, Endpoint: endpoint, Err: err}
		}
	}
	if isTimeout(err) {
		return &ConnectionError{Kind: ConnTimeout, Endpoint: endpoint, Err: err}
	}
	// Refused covers both actively refused and reset-during-handshake.
	return &ConnectionError{Kind: ConnRefused, Endpoint: endpoint, Err: err}
}

func classifyQueryError(err error) *QueryError {
	if isTimeout(err) {
		return &QueryError{Kind: QueryTimeout, Err: err}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &QueryError{Kind: QueryConnectionLost, Err: err}
	}
	return &QueryError{Kind: QueryServerError, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
