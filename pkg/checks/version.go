package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// versionCompatCheck validates the running server version against the 8.0
// upgrade path. 5.7 is the supported jumping-off point; anything older has
// to reach 5.7 first.
type versionCompatCheck struct{}

func (c *versionCompatCheck) Key() string   { return "version_compat" }
func (c *versionCompatCheck) Label() string { return "Version Compatibility" }

func (c *versionCompatCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `SELECT @@version AS version, @@version_comment AS version_comment`)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("server returned no version row")
	}
	version := rows[0].Get("version")

	switch {
	case strings.HasPrefix(version, "8."):
		return []assess.Finding{pass(c.Key(), fmt.Sprintf("server already runs %s", version))}, nil
	case strings.HasPrefix(version, "5.7"):
		return []assess.Finding{{
			CheckKey: c.Key(),
			Severity: assess.SeverityInfo,
			Message:  fmt.Sprintf("server runs %s, upgrade to %s supported", version, target.TargetVersion),
		}}, nil
	default:
		return []assess.Finding{{
			CheckKey: c.Key(),
			Severity: assess.SeverityCritical,
			Message:  fmt.Sprintf("server runs %s, direct upgrade to %s is not supported; upgrade to 5.7 first", version, target.TargetVersion),
		}}, nil
	}
}
