package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// Runner executes a filtered catalogue against one target over one session.
// Checks run sequentially; the session carries cursor state and is never
// shared.
type Runner struct {
	checks       []Check
	checkTimeout time.Duration
	logger       *slog.Logger
}

// NewRunner builds a runner for the given checks. checkTimeout bounds each
// individual check; zero disables the per-check bound.
func NewRunner(checks []Check, checkTimeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{checks: checks, checkTimeout: checkTimeout, logger: logger}
}

// Run evaluates every check against the target. A check that errors or
// panics becomes a failure entry; once the target context expires the
// remaining checks are recorded as skipped. Findings keep registration
// order.
func (r *Runner) Run(ctx context.Context, q Querier, target assess.Target) assess.TargetResult {
	var (
		findings []assess.Finding
		failures []assess.CheckFailure
		skipped  []assess.CheckFailure
	)

	for i, check := range r.checks {
		if ctx.Err() != nil {
			for _, rest := range r.checks[i:] {
				skipped = append(skipped, assess.CheckFailure{
					CheckKey: rest.Key(),
					Reason:   fmt.Sprintf("target deadline exceeded: %v", ctx.Err()),
				})
			}
			break
		}

		results, err := r.evaluate(ctx, check, q, target)
		if err != nil {
			r.logger.Warn("check failed",
				slog.String("target", target.Identifier),
				slog.String("check", check.Key()),
				slog.String("error", err.Error()))
			failures = append(failures, assess.CheckFailure{CheckKey: check.Key(), Reason: err.Error()})
			continue
		}
		findings = append(findings, results...)
	}

	return assess.NewTargetResult(target, findings, failures, skipped)
}

// evaluate runs one check with panic recovery and the per-check timeout.
func (r *Runner) evaluate(ctx context.Context, check Check, q Querier, target assess.Target) (findings []assess.Finding, err error) {
	if r.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.checkTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			findings = nil
			err = &CheckError{Key: check.Key(), Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	findings, err = check.Evaluate(ctx, q, target)
	if err != nil {
		return nil, &CheckError{Key: check.Key(), Err: err}
	}
	for i := range findings {
		// The producing check owns the key; fill it for checks that build
		// findings without repeating themselves.
		if findings[i].CheckKey == "" {
			findings[i].CheckKey = check.Key()
		}
	}
	return findings, nil
}
