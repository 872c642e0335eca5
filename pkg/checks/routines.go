package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// routinesCheck scans stored procedure and function bodies for functions the
// target version removes. The server parses routine bodies lazily, so these
// only blow up at first call after the upgrade, which is the worst possible
// time to find out.
type routinesCheck struct {
	cat *knowledge.Catalog
}

func (c *routinesCheck) Key() string   { return "routines" }
func (c *routinesCheck) Label() string { return "Stored Routines" }

func (c *routinesCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	var findings []assess.Finding
	for _, fn := range c.cat.DeprecatedFunctions {
		rows, err := q.Query(ctx, `
			SELECT routine_schema, routine_name, routine_type
			FROM information_schema.routines
			WHERE routine_definition REGEXP ?
			AND routine_schema NOT IN (`+systemSchemas+`)
			ORDER BY routine_schema, routine_name`, fn.Name+`[[:space:]]*\(`)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message: fmt.Sprintf("%s uses %s(), removed in %s; %s",
					strings.ToLower(row.Get("routine_type")), fn.Name, target.TargetVersion, fn.Replacement),
				Object: qualified(row.Get("routine_schema"), row.Get("routine_name")),
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no removed functions referenced by stored routines"))
	}
	return findings, nil
}

// triggersCheck reviews trigger bodies for removed functions and triggers
// whose definer account no longer exists. Orphaned definers make the trigger
// fail at fire time under the stricter privilege checks.
type triggersCheck struct {
	cat *knowledge.Catalog
}

func (c *triggersCheck) Key() string   { return "triggers" }
func (c *triggersCheck) Label() string { return "Triggers" }

func (c *triggersCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT trigger_schema, trigger_name, action_statement, definer
		FROM information_schema.triggers
		WHERE trigger_schema NOT IN (`+systemSchemas+`)
		ORDER BY trigger_schema, trigger_name`)
	if err != nil {
		return nil, err
	}

	accounts, err := q.Query(ctx, `SELECT user, host FROM mysql.user ORDER BY user, host`)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(accounts))
	for _, row := range accounts {
		known[row.Get("user")+"@"+row.Get("host")] = true
	}

	var findings []assess.Finding
	for _, row := range rows {
		object := qualified(row.Get("trigger_schema"), row.Get("trigger_name"))
		body := strings.ToUpper(row.Get("action_statement"))

		for _, fn := range c.cat.DeprecatedFunctions {
			if strings.Contains(body, fn.Name+"(") || strings.Contains(body, fn.Name+" (") {
				findings = append(findings, assess.Finding{
					CheckKey: c.Key(),
					Severity: assess.SeverityCritical,
					Message:  fmt.Sprintf("trigger body uses %s(), removed in %s; %s", fn.Name, target.TargetVersion, fn.Replacement),
					Object:   object,
				})
			}
		}

		definer := strings.ReplaceAll(row.Get("definer"), "`", "")
		if definer != "" && !known[definer] {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("trigger definer %s does not exist; trigger fails at fire time", definer),
				Object:   object,
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), fmt.Sprintf("%d triggers are compatible", len(rows))))
	}
	return findings, nil
}

// viewsCheck reviews view definitions: orphaned definers and GROUP BY
// without ANY_VALUE, which the default ONLY_FULL_GROUP_BY mode rejects.
type viewsCheck struct{}

func (c *viewsCheck) Key() string   { return "views" }
func (c *viewsCheck) Label() string { return "Views" }

func (c *viewsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT table_schema, table_name, view_definition, is_updatable, security_type, definer
		FROM information_schema.views
		WHERE table_schema NOT IN (`+systemSchemas+`)
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, err
	}

	accounts, err := q.Query(ctx, `SELECT user, host FROM mysql.user ORDER BY user, host`)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(accounts))
	for _, row := range accounts {
		known[row.Get("user")+"@"+row.Get("host")] = true
	}

	var findings []assess.Finding
	for _, row := range rows {
		object := qualified(row.Get("table_schema"), row.Get("table_name"))
		def := strings.ToUpper(row.Get("view_definition"))

		definer := strings.ReplaceAll(row.Get("definer"), "`", "")
		if definer != "" && !known[definer] {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("view definer %s does not exist", definer),
				Object:   object,
			})
		}

		if strings.Contains(def, "GROUP BY") && !strings.Contains(def, "ANY_VALUE(") {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("view uses GROUP BY without ANY_VALUE(); review under ONLY_FULL_GROUP_BY in %s", target.TargetVersion),
				Object:   object,
			})
		}

		if strings.EqualFold(row.Get("is_updatable"), "NO") {
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityInfo,
				Message:  "view is not updatable; verify dependent writes after the upgrade",
				Object:   object,
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), fmt.Sprintf("%d views are compatible", len(rows))))
	}
	return findings, nil
}
