package checks

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// Capacity thresholds as percentages of the column type's maximum.
const (
	autoIncCriticalPct = 90.0
	autoIncWarningPct  = 70.0
)

// autoIncrementCheck finds auto-increment columns approaching the capacity
// of their integer type. Capacity is computed against the signed or unsigned
// maximum of the declared type, not a fixed constant.
type autoIncrementCheck struct {
	cat *knowledge.Catalog
}

func (c *autoIncrementCheck) Key() string   { return "auto_increment" }
func (c *autoIncrementCheck) Label() string { return "Auto-Increment Capacity" }

func (c *autoIncrementCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	var findings []assess.Finding
	for offset := 0; ; offset += scanPageSize {
		rows, err := q.Query(ctx, `
			SELECT
			    t.table_schema,
			    t.table_name,
			    t.auto_increment,
			    c.column_name,
			    c.data_type,
			    c.column_type
			FROM information_schema.tables t
			JOIN information_schema.columns c
			    ON t.table_schema = c.table_schema AND t.table_name = c.table_name
			WHERE t.table_schema NOT IN (`+systemSchemas+`)
			AND t.auto_increment IS NOT NULL
			AND c.extra LIKE '%auto_increment%'
			ORDER BY t.table_schema, t.table_name
			LIMIT ? OFFSET ?`, scanPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			current, ok := row.Uint("auto_increment")
			if !ok {
				continue
			}
			unsigned := strings.Contains(strings.ToLower(row.Get("column_type")), "unsigned")
			max, ok := c.cat.IntegerMax(row.Get("data_type"), unsigned)
			if !ok || max == 0 {
				continue
			}

			percent := float64(current) / float64(max) * 100
			percent = math.Round(percent*10) / 10
			object := qualified(row.Get("table_schema"), row.Get("table_name"), row.Get("column_name"))

			switch {
			case percent >= autoIncCriticalPct:
				findings = append(findings, assess.Finding{
					CheckKey: c.Key(),
					Severity: assess.SeverityCritical,
					Message: fmt.Sprintf("auto-increment at %.1f%% of %s capacity (%d of %d)",
						percent, row.Get("column_type"), current, max),
					Object: object,
					Metric: percent,
				})
			case percent >= autoIncWarningPct:
				findings = append(findings, assess.Finding{
					CheckKey: c.Key(),
					Severity: assess.SeverityWarning,
					Message: fmt.Sprintf("auto-increment at %.1f%% of %s capacity (%d of %d)",
						percent, row.Get("column_type"), current, max),
					Object: object,
					Metric: percent,
				})
			}
		}

		if len(rows) < scanPageSize {
			break
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "all auto-increment columns within safe capacity"))
	}
	return findings, nil
}
