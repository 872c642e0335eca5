package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/session"
)

// fakeQuerier matches queries by substring and returns canned rows. Queries
// with no registered match return an empty result set, which every check
// must treat as "nothing found".
type fakeQuerier struct {
	responses map[string][]session.Row
	errors    map[string]error
	queries   []string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		responses: map[string][]session.Row{},
		errors:    map[string]error{},
	}
}

func (f *fakeQuerier) on(fragment string, rows ...session.Row) {
	f.responses[fragment] = rows
}

func (f *fakeQuerier) failOn(fragment string, err error) {
	f.errors[fragment] = err
}

func (f *fakeQuerier) Query(_ context.Context, query string, args ...any) ([]session.Row, error) {
	f.queries = append(f.queries, query)
	for fragment, err := range f.errors {
		if strings.Contains(query, fragment) {
			return nil, err
		}
	}
	// Parameterized LIKE probes match on their first argument instead of the
	// query text.
	if len(args) == 1 {
		if pattern, ok := args[0].(string); ok {
			if rows, hit := f.responses["arg:"+pattern]; hit {
				return rows, nil
			}
		}
	}
	for fragment, rows := range f.responses {
		if strings.Contains(query, fragment) {
			return rows, nil
		}
	}
	return nil, nil
}

func testTarget() assess.Target {
	return assess.Target{
		Identifier:    "db-1",
		Kind:          assess.KindStandalone,
		EngineVersion: "5.7.44",
		TargetVersion: "8.0",
	}
}

func loadCatalog(t *testing.T) *knowledge.Catalog {
	t.Helper()
	cat, err := knowledge.Load()
	require.NoError(t, err)
	return cat
}

// bySeverity tallies findings for assertions.
func bySeverity(findings []assess.Finding) map[assess.Severity]int {
	counts := map[assess.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
