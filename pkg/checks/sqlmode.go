package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// sqlModeCheck inspects the active sql_mode for modes the target version
// removes or deprecates. A removed mode makes the server refuse to start if
// it survives into the new parameter set.
type sqlModeCheck struct {
	cat *knowledge.Catalog
}

func (c *sqlModeCheck) Key() string   { return "sql_mode" }
func (c *sqlModeCheck) Label() string { return "SQL Modes" }

func (c *sqlModeCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `SELECT @@sql_mode AS sql_mode`)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("server returned no sql_mode row")
	}

	active := map[string]bool{}
	for _, mode := range strings.Split(rows[0].Get("sql_mode"), ",") {
		if mode = strings.TrimSpace(mode); mode != "" {
			active[mode] = true
		}
	}

	var findings []assess.Finding
	for _, mode := range c.cat.SQLModes.Removed {
		if active[mode] {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message:  fmt.Sprintf("sql_mode %s is removed in %s and must be dropped before the upgrade", mode, target.TargetVersion),
				Object:   mode,
			})
		}
	}
	for _, mode := range c.cat.SQLModes.Deprecated {
		if active[mode] {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("sql_mode %s is deprecated in %s", mode, target.TargetVersion),
				Object:   mode,
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "active sql_mode is fully compatible"))
	}
	return findings, nil
}
