// Package fleet orchestrates a compatibility assessment across many targets.
// Targets are assessed independently with bounded parallelism; a failure on
// one target degrades only that target's result.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/checks"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/config"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/credential"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/session"
)

// Orchestrator runs the filtered check catalogue across the configured
// fleet.
type Orchestrator struct {
	cfg      *config.Config
	resolver credential.Resolver
	checks   []checks.Check
	policy   assess.Policy
	logger   *slog.Logger

	// limiter paces connection establishment so a wide fleet does not look
	// like a connection storm to the endpoints.
	limiter *rate.Limiter

	// openSession is swapped in tests.
	openSession func(ctx context.Context, desc credential.ConnectionDescriptor, t session.Timeouts) (querier, error)
}

// querier is the session surface the orchestrator needs.
type querier interface {
	checks.Querier
	Close() error
}

// New builds an orchestrator. The resolver is wrapped in a run-scoped cache;
// nothing resolved here outlives the run.
func New(cfg *config.Config, resolver credential.Resolver, catalogue []checks.Check, policy assess.Policy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.ConnectRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ConnectRate), 1)
	}
	return &Orchestrator{
		cfg:      cfg,
		resolver: credential.WithRunCache(resolver),
		checks:   catalogue,
		policy:   policy,
		logger:   logger,
		limiter:  limiter,
		openSession: func(ctx context.Context, desc credential.ConnectionDescriptor, t session.Timeouts) (querier, error) {
			return session.Open(ctx, desc, t)
		},
	}
}

// Run assesses every configured target and aggregates the fleet result.
// Results are collected in discovery order before aggregation so the output
// is deterministic regardless of completion order.
func (o *Orchestrator) Run(ctx context.Context) (assess.FleetResult, error) {
	results := make([]assess.TargetResult, len(o.cfg.Targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, spec := range o.cfg.Targets {
		i, spec := i, spec
		g.Go(func() error {
			results[i] = o.assessTarget(gctx, spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return assess.FleetResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return assess.FleetResult{}, fmt.Errorf("fleet run canceled: %w", err)
	}

	return assess.Aggregate(results, o.policy), nil
}

// assessTarget resolves credentials, opens a session, and runs the checks
// for one target. Credential or connection failure yields a synthetic
// Critical finding; the target stays in the report.
func (o *Orchestrator) assessTarget(ctx context.Context, spec config.TargetSpec) assess.TargetResult {
	target := spec.AssessTarget(o.cfg.TargetVersion)
	logger := o.logger.With(slog.String("target", target.Identifier))

	if o.cfg.TargetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TargetTimeout.Std())
		defer cancel()
	}

	desc, err := o.resolver.Resolve(ctx, spec.Identifier, spec.Endpoint, spec.Port)
	if err != nil {
		logger.Error("credential resolution failed", slog.String("error", err.Error()))
		return unreachableResult(target, "credentials unavailable", err)
	}
	logger.Debug("credentials resolved", slog.Any("descriptor", desc))

	if err := o.limiter.Wait(ctx); err != nil {
		return unreachableResult(target, "connection failed", err)
	}

	sess, err := o.openSession(ctx, desc, session.Timeouts{
		Connect: o.cfg.ConnectTimeout.Std(),
		Read:    o.cfg.ReadTimeout.Std(),
	})
	if err != nil {
		logger.Error("connection failed", slog.String("error", err.Error()))
		return unreachableResult(target, "connection failed", err)
	}
	defer sess.Close()

	if version := discoverVersion(ctx, sess); version != "" {
		target.EngineVersion = version
	}

	start := time.Now()
	runner := checks.NewRunner(o.checks, o.cfg.CheckTimeout.Std(), logger)
	result := runner.Run(ctx, sess, target)
	logger.Info("target assessed",
		slog.String("status", string(result.Status)),
		slog.Int("findings", len(result.Findings)),
		slog.Int("failures", len(result.Failures)),
		slog.Duration("elapsed", time.Since(start)))
	return result
}

// discoverVersion reads the live server version, preferred over the declared
// one for ordering decisions. Best effort: a failure leaves the declared
// version in place.
func discoverVersion(ctx context.Context, q checks.Querier) string {
	rows, err := q.Query(ctx, `SELECT @@version AS version`)
	if err != nil || len(rows) == 0 {
		return ""
	}
	return strings.TrimSpace(rows[0].Get("version"))
}

// unreachableResult produces the synthetic Critical outcome for a target
// that could not be assessed at all.
func unreachableResult(target assess.Target, label string, err error) assess.TargetResult {
	finding := assess.Finding{
		CheckKey: "target_unreachable",
		Severity: assess.SeverityCritical,
		Message:  fmt.Sprintf("%s: %v", label, err),
	}
	return assess.NewTargetResult(target, []assess.Finding{finding}, nil, nil)
}
