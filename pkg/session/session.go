// Package session opens bounded, read-only database sessions against
// assessment targets. A session is scoped to exactly one target's check run
// and is torn down on every exit path. Checks receive a query capability
// restricted to SELECT/SHOW/EXPLAIN-class statements; there is no generic
// execute path anywhere in this package.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/credential"
)

// Timeouts configures the two independent deadlines of a session: one for
// connection establishment, one per statement.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
}

// DefaultTimeouts mirrors what the checker historically used against
// production endpoints.
func DefaultTimeouts() Timeouts {
	return Timeouts{Connect: 10 * time.Second, Read: 30 * time.Second}
}

// Row is one result row keyed by column name. NULL scans to the empty
// string; the typed accessors report absence via their ok result.
type Row map[string]string

// Get returns the raw column value, "" when absent or NULL.
func (r Row) Get(col string) string { return r[col] }

// Int parses the column as a signed integer.
func (r Row) Int(col string) (int64, bool) {
	v, err := parseInt(r[col])
	return v, err == nil
}

// Uint parses the column as an unsigned integer.
func (r Row) Uint(col string) (uint64, bool) {
	var v uint64
	_, err := fmt.Sscanf(strings.TrimSpace(r[col]), "%d", &v)
	return v, err == nil && !strings.HasPrefix(strings.TrimSpace(r[col]), "-")
}

// Float parses the column as a float.
func (r Row) Float(col string) (float64, bool) {
	var v float64
	_, err := fmt.Sscanf(strings.TrimSpace(r[col]), "%g", &v)
	return v, err == nil
}

func parseInt(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v)
	return v, err
}

// Session is one open read-only connection to a target.
type Session struct {
	db          *sql.DB
	endpoint    string
	readTimeout time.Duration
}

// Open establishes a session for the descriptor. A transient establishment
// failure (timeout, refused, reset during handshake) is retried exactly
// once; authentication failures are surfaced immediately and never retried.
func Open(ctx context.Context, desc credential.ConnectionDescriptor, timeouts Timeouts) (*Session, error) {
	cfg := mysql.NewConfig()
	cfg.User = desc.Username
	cfg.Passwd = desc.Password
	cfg.Net = "tcp"
	cfg.Addr = desc.Addr()
	cfg.Timeout = timeouts.Connect
	cfg.ReadTimeout = timeouts.Read
	cfg.AllowNativePasswords = true
	if desc.TokenAuth {
		// IAM tokens go over the cleartext plugin, which the server only
		// accepts on TLS connections.
		cfg.AllowCleartextPasswords = true
		cfg.TLSConfig = "true"
	}

	open := func() (*sql.DB, error) {
		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		pingCtx := ctx
		if timeouts.Connect > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, timeouts.Connect)
			defer cancel()
		}
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := open()
	if err != nil {
		connErr := classifyConnError(cfg.Addr, err)
		if !connErr.Retryable() || ctx.Err() != nil {
			return nil, connErr
		}
		slog.Debug("retrying connection establishment",
			slog.String("endpoint", cfg.Addr), slog.String("kind", string(connErr.Kind)))
		db, err = open()
		if err != nil {
			return nil, classifyConnError(cfg.Addr, err)
		}
	}

	return &Session{db: db, endpoint: cfg.Addr, readTimeout: timeouts.Read}, nil
}

// readOnlyKeywords is the closed set of statement classes a session accepts.
var readOnlyKeywords = []string{"SELECT", "SHOW", "EXPLAIN", "DESCRIBE", "DESC"}

// ValidateReadOnly rejects any statement whose leading keyword is not in the
// read-only set. Leading block comments are skipped; the keyword is the first
// whitespace-delimited token, so multi-line statements pass.
func ValidateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	for strings.HasPrefix(trimmed, "/*") {
		end := strings.Index(trimmed, "*/")
		if end < 0 {
			break
		}
		trimmed = strings.TrimSpace(trimmed[end+2:])
	}
	fields := strings.Fields(strings.ToUpper(trimmed))
	if len(fields) > 0 {
		for _, keyword := range readOnlyKeywords {
			if fields[0] == keyword {
				return nil
			}
		}
	}
	return fmt.Errorf("statement class not permitted on a read-only session: %.40q", query)
}

// Query runs one read-only statement and materializes the result set as rows
// keyed by column name. Statement execution is bounded by the session's read
// timeout; on timeout the caller gets QueryError{Timeout} and the underlying
// connection is discarded by the pool.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := ValidateReadOnly(query); err != nil {
		return nil, err
	}
	if s.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classifyQueryError(err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			values[i] = new(sql.NullString)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, classifyQueryError(err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			ns := values[i].(*sql.NullString)
			if ns.Valid {
				row[col] = ns.String
			} else {
				row[col] = ""
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(err)
	}
	return out, nil
}

// QueryRow runs a read-only statement expected to return one row. A missing
// row comes back as (nil, nil).
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Endpoint returns the host:port this session is bound to.
func (s *Session) Endpoint() string { return s.endpoint }

// Close releases the session. Safe to call on every exit path.
func (s *Session) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
