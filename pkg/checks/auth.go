package checks

import (
	"context"
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// managedAccounts are platform-owned users excluded from account scans.
const managedAccounts = "'mysql.sys', 'mysql.session', 'mysql.infoschema', 'rdsadmin'"

// authPluginsCheck finds accounts on authentication plugins that are removed
// or deprecated in the target version. Removed and deprecated plugins block
// the upgrade outright; mysql_native_password survives but loses its default
// status, so it is worth a warning.
type authPluginsCheck struct {
	cat *knowledge.Catalog
}

func (c *authPluginsCheck) Key() string   { return "auth_plugins" }
func (c *authPluginsCheck) Label() string { return "Authentication Plugins" }

func (c *authPluginsCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	rows, err := q.Query(ctx, `
		SELECT user, host, plugin
		FROM mysql.user
		WHERE user NOT IN (`+managedAccounts+`)
		ORDER BY user, host`)
	if err != nil {
		return nil, err
	}

	removed := toSet(c.cat.AuthPlugins.Removed)
	deprecated := toSet(c.cat.AuthPlugins.Deprecated)
	superseded := toSet(c.cat.AuthPlugins.Superseded)

	var findings []assess.Finding
	for _, row := range rows {
		plugin := row.Get("plugin")
		account := fmt.Sprintf("'%s'@'%s'", row.Get("user"), row.Get("host"))
		switch {
		case removed[plugin]:
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message:  fmt.Sprintf("account %s uses %s, removed in %s", account, plugin, target.TargetVersion),
				Object:   account,
			})
		case deprecated[plugin]:
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityCritical,
				Message:  fmt.Sprintf("account %s uses %s, deprecated and incompatible with the default auth in %s", account, plugin, target.TargetVersion),
				Object:   account,
			})
		case superseded[plugin]:
			findings = append(findings, assess.Finding{
				CheckKey: c.Key(),
				Severity: assess.SeverityWarning,
				Message:  fmt.Sprintf("account %s uses %s, superseded by caching_sha2_password in %s", account, plugin, target.TargetVersion),
				Object:   account,
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), fmt.Sprintf("all %d accounts use compatible authentication plugins", len(rows))))
	}
	return findings, nil
}

// userPrivilegesCheck reviews account hygiene the new privilege model cares
// about: SUPER holders need dynamic privilege mapping, empty passwords are a
// blocker under any policy.
type userPrivilegesCheck struct{}

func (c *userPrivilegesCheck) Key() string   { return "user_privileges" }
func (c *userPrivilegesCheck) Label() string { return "User Privileges and Security" }

func (c *userPrivilegesCheck) Evaluate(ctx context.Context, q Querier, target assess.Target) ([]assess.Finding, error) {
	superUsers, err := q.Query(ctx, `
		SELECT user, host
		FROM mysql.user
		WHERE Super_priv = 'Y'
		AND user NOT IN (`+managedAccounts+`)
		ORDER BY user, host`)
	if err != nil {
		return nil, err
	}

	var findings []assess.Finding
	for _, row := range superUsers {
		account := fmt.Sprintf("'%s'@'%s'", row.Get("user"), row.Get("host"))
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityWarning,
			Message:  fmt.Sprintf("account %s holds SUPER, which maps to dynamic privileges in %s", account, target.TargetVersion),
			Object:   account,
		})
	}

	emptyPass, err := q.Query(ctx, `
		SELECT user, host
		FROM mysql.user
		WHERE (authentication_string = '' OR authentication_string IS NULL)
		AND user NOT IN (`+managedAccounts+`)
		ORDER BY user, host`)
	if err != nil {
		return nil, err
	}
	for _, row := range emptyPass {
		account := fmt.Sprintf("'%s'@'%s'", row.Get("user"), row.Get("host"))
		findings = append(findings, assess.Finding{
			CheckKey: c.Key(),
			Severity: assess.SeverityCritical,
			Message:  fmt.Sprintf("account %s has an empty password", account),
			Object:   account,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, pass(c.Key(), "account privileges and passwords look compatible"))
	}
	return findings, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
