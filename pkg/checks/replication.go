package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// replicationCheck reviews binlog and replication settings that affect a
// rolling upgrade: statement-format binlogs replay differently across
// versions, and expire_logs_days gives way to a seconds-based setting.
type replicationCheck struct{}

func (c *replicationCheck) Key() string   { return "replication" }
func (c *replicationCheck) Label() string { return "Replication Settings" }

func (c *replicationCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT
		    @@binlog_format AS binlog_format,
		    @@log_bin AS log_bin,
		    @@gtid_mode AS gtid_mode,
		    @@expire_logs_days AS expire_logs_days`)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("server returned no replication settings row")
	}
	settings := rows[0]

	var findings []assess.Finding
	logBin := settings.Get("log_bin")
	binlogEnabled := logBin == "1" || logBin == "ON"

	if binlogEnabled && settings.Get("binlog_format") != "ROW" {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message: fmt.Sprintf("binlog_format is %s; ROW is required for safe cross-version replication during the upgrade",
				settings.Get("binlog_format")),
			Object: "binlog_format",
		})
	}

	if binlogEnabled && settings.Get("gtid_mode") != "ON" {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("gtid_mode is %s; GTID auto-positioning simplifies replica promotion during the upgrade", settings.Get("gtid_mode")),
			Object:   "gtid_mode",
		})
	}

	if days, ok := settings.Int("expire_logs_days"); ok && days > 0 {
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("expire_logs_days=%d is deprecated in %s in favor of binlog_expire_logs_seconds", days, target.TargetVersion),
			Object:   "expire_logs_days",
			Metric:   float64(days),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "replication settings ready for a rolling upgrade"))
	}
	return findings, nil
}
