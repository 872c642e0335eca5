package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// storageEnginesCheck inventories user tables by storage engine. Engines the
// target version drops are blockers; surviving non-InnoDB engines lose
// features (no atomic DDL, no redo-based recovery) and get a warning.
type storageEnginesCheck struct {
	cat *knowledge.Catalog
}

func (c *storageEnginesCheck) Key() string   { return "storage_engines" }
func (c *storageEnginesCheck) Label() string { return "Storage Engines" }

func (c *storageEnginesCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT engine, COUNT(*) AS table_count
		FROM information_schema.tables
		WHERE table_schema NOT IN (`+systemSchemas+`)
		AND table_type = 'BASE TABLE'
		AND engine IS NOT NULL
		GROUP BY engine
		ORDER BY engine`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		engine := row.Get("engine")
		count, _ := row.Int("table_count")
		switch {
		case strings.EqualFold(engine, c.cat.StorageEngines.Preferred):
			// InnoDB is the target state.
		case !c.cat.EngineSupported(engine):
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message:  fmt.Sprintf("%d tables use engine %s, unsupported in %s", count, engine, target.TargetVersion),
				Metric:   float64(count),
			})
		default:
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("%d tables use engine %s; consider converting to %s before the upgrade", count, engine, c.cat.StorageEngines.Preferred),
				Metric:   float64(count),
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), fmt.Sprintf("all user tables use %s", c.cat.StorageEngines.Preferred)))
	}
	return findings, nil
}
