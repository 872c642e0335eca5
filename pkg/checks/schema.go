package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// temporalTypesCheck finds temporal columns in the pre-5.6.4 storage format,
// recognizable by a NULL datetime precision. The old format survives 5.7 but
// the in-place upgrade to the target version rejects it.
type temporalTypesCheck struct{}

func (c *temporalTypesCheck) Key() string   { return "temporal_types" }
func (c *temporalTypesCheck) Label() string { return "Legacy Temporal Columns" }

func (c *temporalTypesCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT table_schema, table_name, column_name, column_type
		FROM information_schema.columns
		WHERE data_type IN ('timestamp', 'datetime', 'time')
		AND datetime_precision IS NULL
		AND table_schema NOT IN (`+systemSchemas+`)
		ORDER BY table_schema, table_name, column_name`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message: fmt.Sprintf("column %s uses the pre-5.6.4 temporal format; rebuild before upgrading to %s",
				row.Get("column_type"), target.TargetVersion),
			Object: qualified(row.Get("table_schema"), row.Get("table_name"), row.Get("column_name")),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no legacy temporal columns found"))
	}
	return findings, nil
}

// largeTableBytes marks tables whose rebuild time dominates the upgrade
// window.
const largeTableBytes = 10 * 1024 * 1024 * 1024

// schemaInventoryCheck takes a census of user schemas: table counts, sizes,
// and tables large enough to dominate the maintenance window. Always at
// least one Info finding so reports carry the inventory even when clean.
type schemaInventoryCheck struct{}

func (c *schemaInventoryCheck) Key() string   { return "schema_inventory" }
func (c *schemaInventoryCheck) Label() string { return "Schema Inventory" }

func (c *schemaInventoryCheck) Evaluate(ctx context.Context, q Querier, _ assess.Target) ([]assess.Finding, error) {
	schemas, err := q.Query(ctx, `
		SELECT
		    table_schema,
		    COUNT(DISTINCT table_name) AS table_count,
		    COALESCE(SUM(data_length + index_length), 0) AS total_bytes
		FROM information_schema.tables
		WHERE table_schema NOT IN (`+systemSchemas+`)
		GROUP BY table_schema
		ORDER BY table_schema`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range schemas {
		tables, _ := row.Int("table_count")
		bytes, _ := row.Uint("total_bytes")
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityInfo,
			Message:  fmt.Sprintf("schema holds %d tables, %.1f MiB", tables, float64(bytes)/(1024*1024)),
			Object:   row.Get("table_schema"),
			Metric:   float64(bytes),
		})
	}

	large, err := q.Query(ctx, `
		SELECT table_schema, table_name, data_length + index_length AS total_bytes
		FROM information_schema.tables
		WHERE table_schema NOT IN (`+systemSchemas+`)
		AND table_type = 'BASE TABLE'
		AND data_length + index_length > ?
		ORDER BY total_bytes DESC`, largeTableBytes)
	if err != nil {
		return nil, err
	}
	for _, row := range large {
		bytes, _ := row.Uint("total_bytes")
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("table is %.1f GiB; budget its rebuild into the upgrade window", float64(bytes)/(1024*1024*1024)),
			Object:   qualified(row.Get("table_schema"), row.Get("table_name")),
			Metric:   float64(bytes),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityInfo,
			Message:  "no user schemas found",
		})
	}
	return findings, nil
}
