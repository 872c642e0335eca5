package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/session"
)

func TestSpatialColumnsAreCritical(t *testing.T) {
	q := newFakeQuerier()
	q.on("SPATIAL",
		session.Row{"table_schema": "geo", "table_name": "places", "column_name": "location",
			"data_type": "point", "spatial_index_count": "1"})

	check := &spatialSRIDCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, assess.SeverityCritical, findings[0].Severity)
	assert.Equal(t, "geo.places.location", findings[0].Object)
}

func TestTemporalLegacyColumns(t *testing.T) {
	q := newFakeQuerier()
	q.on("datetime_precision IS NULL",
		session.Row{"table_schema": "app", "table_name": "audit", "column_name": "created_at",
			"column_type": "datetime"})

	check := &temporalTypesCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, assess.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "app.audit.created_at", findings[0].Object)
}

func TestSchemaInventory(t *testing.T) {
	q := newFakeQuerier()
	q.on("GROUP BY table_schema",
		session.Row{"table_schema": "app", "table_count": "42", "total_bytes": "1073741824"})
	q.on("data_length + index_length > ?",
		session.Row{"table_schema": "app", "table_name": "events", "total_bytes": "21474836480"})

	check := &schemaInventoryCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, assess.SeverityInfo, findings[0].Severity)
	assert.Equal(t, "app", findings[0].Object)

	assert.Equal(t, assess.SeverityWarning, findings[1].Severity)
	assert.Equal(t, "app.events", findings[1].Object)
	assert.Contains(t, findings[1].Message, "20.0 GiB")
}

func TestDuplicateIndexes(t *testing.T) {
	q := newFakeQuerier()
	q.on("information_schema.statistics",
		session.Row{"table_schema": "app", "table_name": "orders", "index_name": "idx_customer", "columns": "customer_id,created_at"},
		session.Row{"table_schema": "app", "table_name": "orders", "index_name": "idx_cust_dup", "columns": "customer_id,created_at"},
		session.Row{"table_schema": "app", "table_name": "orders", "index_name": "idx_status", "columns": "status"})

	check := &duplicateIndexesCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, assess.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "app.orders", findings[0].Object)
	assert.Contains(t, findings[0].Message, "idx_customer")
	assert.Contains(t, findings[0].Message, "idx_cust_dup")
}

func TestDuplicateIndexesDifferentColumnOrderNotDuplicate(t *testing.T) {
	q := newFakeQuerier()
	q.on("information_schema.statistics",
		session.Row{"table_schema": "app", "table_name": "orders", "index_name": "idx_a", "columns": "a,b"},
		session.Row{"table_schema": "app", "table_name": "orders", "index_name": "idx_b", "columns": "b,a"})

	check := &duplicateIndexesCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, assess.SeverityPass, findings[0].Severity)
}

func TestForeignKeyLongName(t *testing.T) {
	longName := "fk_" + strings.Repeat("x", maxConstraintNameLength)

	q := newFakeQuerier()
	q.on("FOREIGN KEY",
		session.Row{"table_schema": "app", "table_name": "orders", "constraint_name": longName,
			"column_name": "customer_id", "supporting_indexes": "1"})

	check := &foreignKeysCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, assess.SeverityCritical, findings[0].Severity)
}

func TestForeignKeyMissingIndex(t *testing.T) {
	q := newFakeQuerier()
	q.on("FOREIGN KEY",
		session.Row{"table_schema": "app", "table_name": "orders", "constraint_name": "fk_customer",
			"column_name": "customer_id", "supporting_indexes": "0"})

	check := &foreignKeysCheck{}
	findings, err := check.Evaluate(context.Background(), q, testTarget())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, assess.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "app.orders.customer_id", findings[0].Object)
}
