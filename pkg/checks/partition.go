package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// highPartitionCount is where partition maintenance starts hurting; beyond
// it the original operational guidance is to consolidate before upgrading.
const highPartitionCount = 100

// partitioningCheck validates partitioned tables. The target version drops
// generic partitioning handlers, so a partitioned table on a non-native
// engine cannot be upgraded in place.
type partitioningCheck struct{}

func (c *partitioningCheck) Key() string   { return "partitioning" }
func (c *partitioningCheck) Label() string { return "Partition Compatibility" }

func (c *partitioningCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT
		    p.table_schema,
		    p.table_name,
		    t.engine,
		    MAX(p.partition_method) AS partition_method,
		    COUNT(p.partition_name) AS partition_count
		FROM information_schema.partitions p
		JOIN information_schema.tables t
		    ON p.table_schema = t.table_schema AND p.table_name = t.table_name
		WHERE p.table_schema NOT IN (`+systemSchemas+`)
		AND p.partition_name IS NOT NULL
		GROUP BY p.table_schema, p.table_name, t.engine
		ORDER BY p.table_schema, p.table_name`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		object := qualified(row.Get("table_schema"), row.Get("table_name"))
		engine := row.Get("engine")
		count, _ := row.Int("partition_count")

		if !strings.EqualFold(engine, "InnoDB") && !strings.EqualFold(engine, "NDB") {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message:  fmt.Sprintf("partitioned table uses engine %s; %s only supports native partitioning", engine, target.TargetVersion),
				Object:   object,
			})
			continue
		}
		if count > highPartitionCount {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("table has %d partitions (%s); consider consolidating before the upgrade", count, row.Get("partition_method")),
				Object:   object,
				Metric:   float64(count),
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no incompatible partitioned tables"))
	}
	return findings, nil
}
