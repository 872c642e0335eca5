package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// duplicateIndexesCheck finds secondary indexes covering the same ordered
// column list. Duplicates are pure write overhead and worth dropping before
// the upgrade while a maintenance window is already scheduled.
type duplicateIndexesCheck struct{}

func (c *duplicateIndexesCheck) Key() string   { return "duplicate_indexes" }
func (c *duplicateIndexesCheck) Label() string { return "Duplicate Indexes" }

func (c *duplicateIndexesCheck) Evaluate(ctx context.Context, q Querier, _ assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT
		    table_schema,
		    table_name,
		    index_name,
		    GROUP_CONCAT(column_name ORDER BY seq_in_index) AS columns
		FROM information_schema.statistics
		WHERE table_schema NOT IN (`+systemSchemas+`)
		AND index_name != 'PRIMARY'
		GROUP BY table_schema, table_name, index_name
		ORDER BY table_schema, table_name, index_name`)
	if err != nil {
		return nil, err
	}

	// Index name is irrelevant; the ordered column list is identity.
	type indexRef struct {
		name    string
		columns string
	}
	byTable := map[string][]indexRef{}
	tableOrder := []string{}
	for _, row := range rows {
		table := qualified(row.Get("table_schema"), row.Get("table_name"))
		if _, seen := byTable[table]; !seen {
			tableOrder = append(tableOrder, table)
		}
		byTable[table] = append(byTable[table], indexRef{
			name:    row.Get("index_name"),
			columns: row.Get("columns"),
		})
	}

	var findings []assess.Finding
	for _, table := range tableOrder {
		indexes := byTable[table]
		for i := 0; i < len(indexes); i++ {
			for j := i + 1; j < len(indexes); j++ {
				if indexes[i].columns != indexes[j].columns {
					continue
				}
				findings = append(findings, assess.Finding{
					CheckKey: c.Key(),
					Severity: assess.SeverityWarning,
					Message: fmt.Sprintf("indexes %s and %s both cover (%s)",
						indexes[i].name, indexes[j].name, indexes[i].columns),
					Object: table,
				})
			}
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no duplicate secondary indexes"))
	}
	return findings, nil
}
