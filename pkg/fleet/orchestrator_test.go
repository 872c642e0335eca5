package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/checks"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/config"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/credential"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/session"
)

// stubResolver serves static descriptors and can fail selected targets.
type stubResolver struct {
	failFor map[string]error
}

func (r *stubResolver) Resolve(_ context.Context, targetID, endpoint string, port int) (credential.ConnectionDescriptor, error) {
	if err, ok := r.failFor[targetID]; ok {
		return credential.ConnectionDescriptor{}, err
	}
	return credential.ConnectionDescriptor{Host: endpoint, Port: port, Username: "assessor", Password: "x"}, nil
}

// stubSession answers the version probe and records Close.
type stubSession struct {
	version string
	closed  atomic.Bool
}

func (s *stubSession) Query(_ context.Context, query string, _ ...any) ([]session.Row, error) {
	if strings.Contains(query, "@@version") {
		return []session.Row{{"version": s.version}}, nil
	}
	return nil, nil
}

func (s *stubSession) Close() error {
	s.closed.Store(true)
	return nil
}

// stubCheck emits a fixed finding per target.
type stubCheck struct {
	key      string
	severity assess.Severity
}

func (c *stubCheck) Key() string   { return c.key }
func (c *stubCheck) Label() string { return c.key }

func (c *stubCheck) Evaluate(_ context.Context, _ checks.Querier, _ assess.Target) ([]assess.Finding, error) {
	return []assess.Finding{{CheckKey: c.key, Severity: c.severity, Message: "stub"}}, nil
}

func testConfig(targets ...config.TargetSpec) *config.Config {
	return &config.Config{
		TargetVersion: "8.0",
		Targets:       targets,
		Concurrency:   config.DefaultConcurrency,
		CheckTimeout:  config.Duration(time.Minute),
	}
}

func target(id string) config.TargetSpec {
	return config.TargetSpec{Identifier: id, Endpoint: id + ".internal", Port: 3306, Kind: "standalone"}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAssessesFleet(t *testing.T) {
	cfg := testConfig(target("db-1"), target("db-2"))
	catalogue := []checks.Check{&stubCheck{key: "probe", severity: assess.SeverityPass}}
	o := New(cfg, &stubResolver{}, catalogue, assess.Policy{}, quietLogger())

	var mu sync.Mutex
	sessions := map[string]*stubSession{}
	o.openSession = func(_ context.Context, desc credential.ConnectionDescriptor, _ session.Timeouts) (querier, error) {
		s := &stubSession{version: "5.7.40-log"}
		mu.Lock()
		sessions[desc.Host] = s
		mu.Unlock()
		return s, nil
	}

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Targets, 2)
	assert.Equal(t, assess.SeverityPass, result.Status)
	assert.ElementsMatch(t, []string{"db-1", "db-2"}, result.UpgradeOrder)
	for _, tr := range result.Targets {
		assert.Equal(t, "5.7.40-log", tr.Target.EngineVersion, "live version overrides the declared one")
	}
	for host, s := range sessions {
		assert.True(t, s.closed.Load(), "session for %s not closed", host)
	}
}

func TestRunCredentialFailureStaysInFleet(t *testing.T) {
	cfg := testConfig(target("db-ok"), target("db-locked"))
	resolver := &stubResolver{failFor: map[string]error{
		"db-locked": &credential.Error{Kind: credential.ErrNotFound, TargetID: "db-locked"},
	}}
	catalogue := []checks.Check{&stubCheck{key: "probe", severity: assess.SeverityPass}}
	o := New(cfg, resolver, catalogue, assess.Policy{}, quietLogger())
	o.openSession = func(context.Context, credential.ConnectionDescriptor, session.Timeouts) (querier, error) {
		return &stubSession{version: "5.7.44"}, nil
	}

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Targets, 2)
	assert.Equal(t, assess.SeverityCritical, result.Status)
	// The clean target upgrades first; the unreachable one sorts last.
	assert.Equal(t, []string{"db-ok", "db-locked"}, result.UpgradeOrder)

	locked := result.Targets[1]
	require.Len(t, locked.Findings, 1)
	assert.Equal(t, "target_unreachable", locked.Findings[0].CheckKey)
	assert.Equal(t, assess.SeverityCritical, locked.Findings[0].Severity)
	assert.Contains(t, locked.Findings[0].Message, "credentials unavailable")
}

func TestRunConnectionFailureStaysInFleet(t *testing.T) {
	cfg := testConfig(target("db-1"))
	catalogue := []checks.Check{&stubCheck{key: "probe", severity: assess.SeverityPass}}
	o := New(cfg, &stubResolver{}, catalogue, assess.Policy{}, quietLogger())
	o.openSession = func(context.Context, credential.ConnectionDescriptor, session.Timeouts) (querier, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Targets, 1)
	require.Len(t, result.Targets[0].Findings, 1)
	assert.Contains(t, result.Targets[0].Findings[0].Message, "connection failed")
	assert.Equal(t, assess.SeverityCritical, result.Targets[0].Status)
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	cfg := testConfig(target("db-1"), target("db-2"), target("db-3"), target("db-4"))
	cfg.Concurrency = 2
	catalogue := []checks.Check{&stubCheck{key: "probe", severity: assess.SeverityPass}}
	o := New(cfg, &stubResolver{}, catalogue, assess.Policy{}, quietLogger())

	var inFlight, peak atomic.Int32
	o.openSession = func(_ context.Context, _ credential.ConnectionDescriptor, _ session.Timeouts) (querier, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &stubSession{version: "5.7.44"}, nil
	}

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunCanceledContext(t *testing.T) {
	cfg := testConfig(target("db-1"))
	catalogue := []checks.Check{&stubCheck{key: "probe", severity: assess.SeverityPass}}
	o := New(cfg, &stubResolver{}, catalogue, assess.Policy{}, quietLogger())
	o.openSession = func(context.Context, credential.ConnectionDescriptor, session.Timeouts) (querier, error) {
		return &stubSession{version: "5.7.44"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	cfg := testConfig(target("db-a"), target("db-b"), target("db-c"))
	catalogue := []checks.Check{&stubCheck{key: "probe", severity: assess.SeverityWarning}}

	var orders [][]string
	for i := 0; i < 3; i++ {
		o := New(cfg, &stubResolver{}, catalogue, assess.Policy{}, quietLogger())
		o.openSession = func(context.Context, credential.ConnectionDescriptor, session.Timeouts) (querier, error) {
			return &stubSession{version: "5.7.44"}, nil
		}
		result, err := o.Run(context.Background())
		require.NoError(t, err)
		orders = append(orders, result.UpgradeOrder)
	}
	assert.Equal(t, orders[0], orders[1])
	assert.Equal(t, orders[1], orders[2])
}
