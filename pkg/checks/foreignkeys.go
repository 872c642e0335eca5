package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// maxConstraintNameLength is enforced by the upgraded data dictionary;
// longer constraint names fail the in-place upgrade.
const maxConstraintNameLength = 64

// foreignKeysCheck validates foreign key constraints: name length against
// the new data dictionary limit and index support on the referencing
// columns.
type foreignKeysCheck struct{}

func (c *foreignKeysCheck) Key() string   { return "foreign_keys" }
func (c *foreignKeysCheck) Label() string { return "Foreign Key Constraints" }

func (c *foreignKeysCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT
		    tc.table_schema,
		    tc.table_name,
		    tc.constraint_name,
		    kcu.column_name,
		    (
		        SELECT COUNT(*)
		        FROM information_schema.statistics s
		        WHERE s.table_schema = kcu.table_schema
		        AND s.table_name = kcu.table_name
		        AND s.column_name = kcu.column_name
		        AND s.seq_in_index = 1
		    ) AS supporting_indexes
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		    ON tc.constraint_name = kcu.constraint_name
		    AND tc.table_schema = kcu.table_schema
		    AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema NOT IN (`+systemSchemas+`)
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	seenLongName := map[string]bool{}
	for _, row := range rows {
		table := qualified(row.Get("table_schema"), row.Get("table_name"))
		name := row.Get("constraint_name")

		if len(name) > maxConstraintNameLength && !seenLongName[table+"."+name] {
			seenLongName[table+"."+name] = true
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message: fmt.Sprintf("constraint name %q is %d characters; %s limits constraint names to %d",
					name, len(name), target.TargetVersion, maxConstraintNameLength),
				Object: table,
				Metric: float64(len(name)),
			})
		}

		if indexes, ok := row.Int("supporting_indexes"); ok && indexes == 0 {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("foreign key %s has no index leading on column %s", name, row.Get("column_name")),
				Object:   qualified(table, row.Get("column_name")),
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "foreign key constraints are compatible"))
	}
	return findings, nil
}
