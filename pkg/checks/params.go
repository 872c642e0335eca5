package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// removedParamsCheck probes for server parameters the target version removes
// or renames. A removed parameter left in the parameter set stops the
// upgraded server from starting.
type removedParamsCheck struct {
	cat *knowledge.Catalog
}

func (c *removedParamsCheck) Key() string   { return "removed_params" }
func (c *removedParamsCheck) Label() string { return "Removed Server Parameters" }

func (c *removedParamsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	var findings []assess.Finding

	for _, param := range c.cat.RemovedParameters {
		rows, err := q.Query(ctx, `SHOW VARIABLES LIKE ?`, param.Name)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityCritical,
			Message:  fmt.Sprintf("parameter %s (=%s) is removed in %s; %s", param.Name, rows[0].Get("Value"), target.TargetVersion, param.Note),
			Object:   param.Name,
		})
	}

	for _, param := range c.cat.RenamedParameters {
		rows, err := q.Query(ctx, `SHOW VARIABLES LIKE ?`, param.Name)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("parameter %s is renamed to %s in %s", param.Name, param.Replacement, target.TargetVersion),
			Object:   param.Name,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no removed or renamed parameters in the active set"))
	}
	return findings, nil
}

// engineSettingsCheck reviews InnoDB settings that stop mattering or change
// meaning after the upgrade: the file format family is gone (Barracuda
// only), large_prefix is always on.
type engineSettingsCheck struct{}

func (c *engineSettingsCheck) Key() string   { return "engine_settings" }
func (c *engineSettingsCheck) Label() string { return "InnoDB Settings" }

func (c *engineSettingsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `SHOW VARIABLES LIKE 'innodb\_%'`)
	if err != nil {
		return nil, err
	}

	obsolete := map[string]string{
		"innodb_file_format":       "only Barracuda remains",
		"innodb_file_format_check": "only Barracuda remains",
		"innodb_file_format_max":   "only Barracuda remains",
		"innodb_large_prefix":      "always enabled",
		"innodb_support_xa":        "always enabled",
		"innodb_checksums":         "superseded by innodb_checksum_algorithm",
		"innodb_locks_unsafe_for_binlog": "removed",
	}

	var findings []assess.Finding
	for _, row := range rows {
		name := strings.ToLower(row.Get("Variable_name"))
		note, hit := obsolete[name]
		if !hit {
			continue
		}
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("setting %s (=%s) is obsolete in %s: %s", name, row.Get("Value"), target.TargetVersion, note),
			Object:   name,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "no obsolete InnoDB settings present"))
	}
	return findings, nil
}

// queryCacheCheck flags an enabled query cache. The whole subsystem is gone
// in the target version, so workloads leaning on it need a caching strategy
// before the upgrade, not after.
type queryCacheCheck struct{}

func (c *queryCacheCheck) Key() string   { return "query_cache" }
func (c *queryCacheCheck) Label() string { return "Query Cache" }

func (c *queryCacheCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `SHOW VARIABLES LIKE 'query\_cache%'`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range rows {
		value := strings.ToLower(row.Get("Value"))
		if value == "0" || value == "off" || value == "" {
			continue
		}
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityCritical,
			Message: fmt.Sprintf("query cache is active (%s=%s) and removed entirely in %s",
				row.Get("Variable_name"), row.Get("Value"), target.TargetVersion),
			Object: strings.ToLower(row.Get("Variable_name")),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "query cache is disabled"))
	}
	return findings, nil
}
