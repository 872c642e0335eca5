// Package credential resolves target identifiers to connection descriptors
// using one of three strategies: a secret-store lookup, federated short-lived
// auth tokens, or static configuration. Secret material lives only as long
// as the descriptor that carries it and is never logged.
package credential

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// StrategyKind tags the closed set of credential strategies. New strategies
// extend this variant instead of scattering conditionals.
type StrategyKind string

const (
	StrategySecretStore   StrategyKind = "secret_store"
	StrategyFederatedAuth StrategyKind = "federated_auth"
	StrategyStaticConfig  StrategyKind = "static_config"
)

// ConnectionDescriptor is everything the connection manager needs to open a
// session against one target. Exclusively owned by that target for the
// duration of the run.
type ConnectionDescriptor struct {
	Host     string
	Port     int
	Username string
	Password string
	// TokenAuth marks short-lived federated tokens, which the driver must
	// send via the cleartext plugin over TLS.
	TokenAuth bool
	// PlaintextSourced marks descriptors read verbatim from configuration,
	// recorded for audit; intended for non-production use only.
	PlaintextSourced bool
}

// Addr returns the host:port endpoint.
func (d ConnectionDescriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// LogValue keeps secret material out of structured logs.
func (d ConnectionDescriptor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", d.Host),
		slog.Int("port", d.Port),
		slog.String("username", d.Username),
		slog.Bool("token_auth", d.TokenAuth),
		slog.Bool("plaintext_sourced", d.PlaintextSourced),
	)
}

// ErrorKind classifies credential resolution failures.
type ErrorKind string

const (
	ErrNotFound           ErrorKind = "not_found"
	ErrAmbiguousMatch     ErrorKind = "ambiguous_match"
	ErrMalformedSecret    ErrorKind = "malformed_secret"
	ErrBackendUnavailable ErrorKind = "auth_backend_unavailable"
)

// Error reports a failed resolution for one target. Resolution failures
// degrade only that target; the fleet run continues.
type Error struct {
	Kind     ErrorKind
	TargetID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("credentials for %s: %s", e.TargetID, e.Kind)
	}
	return fmt.Sprintf("credentials for %s: %s: %v", e.TargetID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
