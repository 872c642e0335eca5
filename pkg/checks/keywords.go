package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// reservedKeywordsCheck flags schema, table, column, and routine names that
// collide with words reserved by the target version. Collisions are Critical:
// unquoted references break at parse time after the upgrade.
type reservedKeywordsCheck struct {
	cat *knowledge.Catalog
}

func (c *reservedKeywordsCheck) Key() string   { return "reserved_keywords" }
func (c *reservedKeywordsCheck) Label() string { return "Reserved Keyword Conflicts" }

func (c *reservedKeywordsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	reserved := c.cat.ReservedWordsFor(target.TargetVersion)

	var findings []assess.Finding
	conflict := func(object, objectType string) {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityCritical,
			Message:  fmt.Sprintf("%s name conflicts with a reserved word in %s", objectType, target.TargetVersion),
			Object:   object,
		})
	}

	schemas, err := q.Query(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN (`+systemSchemas+`)
		ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	for _, row := range schemas {
		name := row.Get("schema_name")
		if _, hit := reserved[strings.ToUpper(name)]; hit {
			conflict(name, "schema")
		}
	}

	if err := c.scanTables(ctx, q, reserved, conflict); err != nil {
		return nil, err
	}
	if err := c.scanColumns(ctx, q, reserved, conflict); err != nil {
		return nil, err
	}

	routines, err := q.Query(ctx, `
		SELECT routine_schema, routine_name, routine_type
		FROM information_schema.routines
		WHERE routine_schema NOT IN (`+systemSchemas+`)
		ORDER BY routine_schema, routine_name`)
	if err != nil {
		return nil, err
	}
	for _, row := range routines {
		name := row.Get("routine_name")
		if _, hit := reserved[strings.ToUpper(name)]; hit {
			conflict(qualified(row.Get("routine_schema"), name), strings.ToLower(row.Get("routine_type")))
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no object names collide with reserved words"))
	}
	return findings, nil
}

func (c *reservedKeywordsCheck) scanTables(ctx context.Context, q Querier, reserved map[string]struct{}, conflict func(object, objectType string)) error {
	for offset := 0; ; offset += scanPageSize {
		rows, err := q.Query(ctx, `
			SELECT table_schema, table_name
			FROM information_schema.tables
			WHERE table_schema NOT IN (`+systemSchemas+`)
			ORDER BY table_schema, table_name
			LIMIT ? OFFSET ?`, scanPageSize, offset)
		if err != nil {
			return err
		}
		for _, row := range rows {
			name := row.Get("table_name")
			if _, hit := reserved[strings.ToUpper(name)]; hit {
				conflict(qualified(row.Get("table_schema"), name), "table")
			}
		}
		if len(rows) < scanPageSize {
			return nil
		}
	}
}

func (c *reservedKeywordsCheck) scanColumns(ctx context.Context, q Querier, reserved map[string]struct{}, conflict func(object, objectType string)) error {
	for offset := 0; ; offset += scanPageSize {
		rows, err := q.Query(ctx, `
			SELECT table_schema, table_name, column_name
			FROM information_schema.columns
			WHERE table_schema NOT IN (`+systemSchemas+`)
			ORDER BY table_schema, table_name, column_name
			LIMIT ? OFFSET ?`, scanPageSize, offset)
		if err != nil {
			return err
		}
		for _, row := range rows {
			name := row.Get("column_name")
			if _, hit := reserved[strings.ToUpper(name)]; hit {
				conflict(qualified(row.Get("table_schema"), row.Get("table_name"), name), "column")
			}
		}
		if len(rows) < scanPageSize {
			return nil
		}
	}
}
