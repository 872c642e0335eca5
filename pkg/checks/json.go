package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// jsonColumnsCheck inventories JSON columns and their index coverage. JSON
// carries over cleanly; unindexed columns are flagged because the target
// version adds functional and multi-valued indexes worth adopting.
type jsonColumnsCheck struct{}

func (c *jsonColumnsCheck) Key() string   { return "json_columns" }
func (c *jsonColumnsCheck) Label() string { return "JSON Columns" }

func (c *jsonColumnsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT
		    c.table_schema,
		    c.table_name,
		    c.column_name,
		    (
		        SELECT COUNT(*)
		        FROM information_schema.statistics s
		        WHERE s.table_schema = c.table_schema
		        AND s.table_name = c.table_name
		        AND s.column_name = c.column_name
		    ) AS index_count
		FROM information_schema.columns c
		WHERE c.data_type = 'json'
		AND c.table_schema NOT IN (`+systemSchemas+`)
		ORDER BY c.table_schema, c.table_name, c.column_name`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		object := qualified(row.Get("table_schema"), row.Get("table_name"), row.Get("column_name"))
		indexes, _ := row.Int("index_count")
		if indexes == 0 {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("JSON column has no index; consider a functional index in %s", target.TargetVersion),
				Object:   object,
			})
			continue
		}
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityInfo,
			Message:  fmt.Sprintf("JSON column has %d covering indexes", indexes),
			Object:   object,
			Metric:   float64(indexes),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no JSON columns found"))
	}
	return findings, nil
}
