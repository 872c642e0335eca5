package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/session"
)

// guardedQuerier runs every statement through the session's read-only gate
// before delegating, the same validation a live session applies.
type guardedQuerier struct {
	t     *testing.T
	inner *fakeQuerier
}

func (g *guardedQuerier) Query(ctx context.Context, query string, args ...any) ([]session.Row, error) {
	if err := session.ValidateReadOnly(query); err != nil {
		g.t.Errorf("catalogue statement rejected by the read-only gate: %v", err)
	}
	return g.inner.Query(ctx, query, args...)
}

// Every statement the catalogue emits, including multi-line SELECTs, must be
// accepted by the read-only gate.
func TestCatalogueStatementsPassReadOnlyGate(t *testing.T) {
	registry := NewRegistry(loadCatalog(t))
	for _, check := range registry.All() {
		t.Run(check.Key(), func(t *testing.T) {
			q := &guardedQuerier{t: t, inner: newFakeQuerier()}
			check.Evaluate(context.Background(), q, testTarget())
			assert.NotEmpty(t, q.inner.queries, "check issued no statements")
		})
	}
}
