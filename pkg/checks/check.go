// Package checks implements the compatibility check catalogue. Every check
// is read-only, independent of the others, and reports findings instead of
// returning errors for compatibility problems; an error from Evaluate means
// the check itself could not run.
package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/session"
)

// Querier is the only capability a check receives. It is satisfied by
// *session.Session and by test fakes.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]session.Row, error)
}

// Check is one entry in the catalogue. Key is stable across releases and is
// what include/exclude filters and reports refer to.
type Check interface {
	Key() string
	Label() string
	Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error)
}

// CheckError wraps a failure of the check machinery itself, including
// recovered panics. It degrades a single check, never the target run.
type CheckError struct {
	Key string
	Err error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s: %v", e.Key, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// systemSchemas are excluded from every catalogue scan.
const systemSchemas = "'mysql', 'sys', 'information_schema', 'performance_schema'"

// scanPageSize bounds information_schema pagination so a wide catalogue
// cannot hold one result set open indefinitely.
const scanPageSize = 500

func pass(key, message string) assess.Finding {
	return assess.Finding{CheckKey: key, Severity: assess.SeverityPass, Message: message}
}

func qualified(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "."
		}
		out += p
	}
	return out
}
