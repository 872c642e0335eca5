package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// charsetCheck reviews character set usage ahead of the utf8mb4 default
// switch. Existing utf8mb3 and latin1 data keeps working after the upgrade,
// so everything here is a warning about defaults and client compatibility,
// never a blocker.
type charsetCheck struct{}

func (c *charsetCheck) Key() string   { return "charset" }
func (c *charsetCheck) Label() string { return "Character Sets" }

func (c *charsetCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	var findings []assess.Finding

	server, err := q.Query(ctx, `
		SELECT @@character_set_server AS character_set_server,
		       @@collation_server AS collation_server`)
	if err != nil {
		return nil, err
	}
	if len(server) > 0 {
		charset := server[0].Get("character_set_server")
		if charset != "utf8mb4" {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("server default character set is %s; %s defaults to utf8mb4 for new objects", charset, target.TargetVersion),
			})
		}
	}

	schemas, err := q.Query(ctx, `
		SELECT schema_name, default_character_set_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN (`+systemSchemas+`)
		AND default_character_set_name != 'utf8mb4'
		ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	for _, row := range schemas {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("schema default character set is %s", row.Get("default_character_set_name")),
			Object:   row.Get("schema_name"),
		})
	}

	// Column scan is paged: wide catalogues should not pin one result set.
	counts := map[string]int{}
	for offset := 0; ; offset += scanPageSize {
		rows, err := q.Query(ctx, `
			SELECT t.table_schema, t.table_name, c.column_name, c.character_set_name
			FROM information_schema.tables t
			JOIN information_schema.columns c
			    ON t.table_schema = c.table_schema AND t.table_name = c.table_name
			WHERE c.character_set_name IS NOT NULL
			AND c.character_set_name != 'utf8mb4'
			AND c.data_type IN ('char', 'varchar', 'text', 'tinytext', 'mediumtext', 'longtext', 'enum', 'set')
			AND t.table_schema NOT IN (`+systemSchemas+`)
			AND t.table_type = 'BASE TABLE'
			ORDER BY t.table_schema, t.table_name, c.column_name
			LIMIT ? OFFSET ?`, scanPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.Get("character_set_name")]++
		}
		if len(rows) < scanPageSize {
			break
		}
	}
	for charset, n := range counts {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("%d columns use character set %s; review client library compatibility before converting", n, charset),
			Metric:   float64(n),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "character set configuration already utf8mb4 throughout"))
	}
	return findings, nil
}

// collationsCheck inventories collations in use and flags ones the target
// version drops.
type collationsCheck struct{}

func (c *collationsCheck) Key() string   { return "collations" }
func (c *collationsCheck) Label() string { return "Collation Inventory" }

// removedCollations no longer exist after the upgrade; tables using them
// fail the in-place upgrade checker.
var removedCollations = map[string]bool{
	"utf8mb4_general_mysql500_ci": true,
	"utf8_general_mysql500_ci":    true,
	"ucs2_general_mysql500_ci":    true,
}

func (c *collationsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT table_collation, COUNT(*) AS table_count
		FROM information_schema.tables
		WHERE table_schema NOT IN (`+systemSchemas+`)
		AND table_collation IS NOT NULL
		GROUP BY table_collation
		ORDER BY table_collation`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		collation := row.Get("table_collation")
		count, _ := row.Int("table_count")
		if removedCollations[collation] {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("%d tables use collation %s, removed in %s", count, collation, target.TargetVersion),
				Metric:   float64(count),
			})
			continue
		}
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityInfo,
			Message:  fmt.Sprintf("%d tables use collation %s", count, collation),
			Metric:   float64(count),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no user tables found"))
	}
	return findings, nil
}
