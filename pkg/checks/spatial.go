package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// spatialSRIDCheck finds spatial columns. The target version enforces SRID
// restrictions on indexed spatial columns; columns created on 5.7 carry no
// SRID and their spatial indexes stop being used until the column is
// rebuilt with one.
type spatialSRIDCheck struct{}

func (c *spatialSRIDCheck) Key() string   { return "spatial_srid" }
func (c *spatialSRIDCheck) Label() string { return "Spatial SRID Requirements" }

func (c *spatialSRIDCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT
		    c.table_schema,
		    c.table_name,
		    c.column_name,
		    c.data_type,
		    (
		        SELECT COUNT(*)
		        FROM information_schema.statistics s
		        WHERE s.table_schema = c.table_schema
		        AND s.table_name = c.table_name
		        AND s.column_name = c.column_name
		        AND s.index_type = 'SPATIAL'
		    ) AS spatial_index_count
		FROM information_schema.columns c
		WHERE c.data_type IN (
		    'geometry', 'point', 'linestring', 'polygon',
		    'multipoint', 'multilinestring', 'multipolygon', 'geometrycollection'
		)
		AND c.table_schema NOT IN (`+systemSchemas+`)
		ORDER BY c.table_schema, c.table_name, c.column_name`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		object := qualified(row.Get("table_schema"), row.Get("table_name"), row.Get("column_name"))
		indexed, _ := row.Int("spatial_index_count")
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityCritical,
			Message: fmt.Sprintf("spatial column (%s, %d spatial indexes) needs an explicit SRID before %s",
				row.Get("data_type"), indexed, target.TargetVersion),
			Object: object,
			Metric: float64(indexed),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no spatial columns found"))
	}
	return findings, nil
}
