package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTargetFleet() []TargetResult {
	red := NewTargetResult(Target{Identifier: "db-red", EngineVersion: "5.7.12"}, []Finding{
		{CheckKey: "auto_increment", Severity: SeverityCritical},
		{CheckKey: "charset", Severity: SeverityWarning},
	}, nil, nil)
	green := NewTargetResult(Target{Identifier: "db-green", EngineVersion: "5.7.44"}, []Finding{
		{CheckKey: "auto_increment", Severity: SeverityPass},
	}, nil, nil)
	return []TargetResult{red, green}
}

func TestAggregateTwoTargets(t *testing.T) {
	fleet := Aggregate(twoTargetFleet(), DefaultPolicy())

	require.Len(t, fleet.Targets, 2)
	assert.Equal(t, SeverityCritical, fleet.Status)
	assert.Equal(t, SeverityCounts{Critical: 1, Warning: 1, Pass: 1}, fleet.Counts)

	// The clean target upgrades first despite its newer engine version.
	assert.Equal(t, []string{"db-green", "db-red"}, fleet.UpgradeOrder)
	assert.Equal(t, "db-green", fleet.Targets[0].Target.Identifier)

	assert.Equal(t, 100, fleet.Targets[0].Score)
	assert.Equal(t, 55, fleet.Targets[1].Score)
}

func TestAggregateIdempotent(t *testing.T) {
	first := Aggregate(twoTargetFleet(), DefaultPolicy())
	second := Aggregate(twoTargetFleet(), DefaultPolicy())
	assert.Equal(t, first, second)
}

func TestAggregateEmptyFleet(t *testing.T) {
	fleet := Aggregate(nil, DefaultPolicy())
	assert.Equal(t, SeverityPass, fleet.Status)
	assert.Empty(t, fleet.Targets)
	assert.Empty(t, fleet.UpgradeOrder)
}

func TestAggregateNilPolicyFallsBack(t *testing.T) {
	fleet := Aggregate(twoTargetFleet(), Policy{})
	assert.Equal(t, []string{"db-green", "db-red"}, fleet.UpgradeOrder)
}

func TestAggregateCustomOrderPolicy(t *testing.T) {
	discovery := func(results []TargetResult) []int {
		order := make([]int, len(results))
		for i := range order {
			order[i] = i
		}
		return order
	}
	fleet := Aggregate(twoTargetFleet(), Policy{Order: discovery})
	assert.Equal(t, []string{"db-red", "db-green"}, fleet.UpgradeOrder)
}

func TestAggregateKeepsEveryTarget(t *testing.T) {
	results := twoTargetFleet()
	results = append(results, NewTargetResult(Target{Identifier: "db-failed"}, []Finding{
		{CheckKey: "target_unreachable", Severity: SeverityCritical},
	}, nil, nil))

	fleet := Aggregate(results, DefaultPolicy())
	require.Len(t, fleet.Targets, 3)
	ids := map[string]bool{}
	for _, r := range fleet.Targets {
		ids[r.Target.Identifier] = true
	}
	assert.True(t, ids["db-failed"], "unreachable target must stay in the fleet result")
}
