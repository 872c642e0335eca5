package assess

// Aggregate folds per-target results into a FleetResult using the given
// policy. Results arrive in discovery order; the returned target list and
// UpgradeOrder follow the policy's upgrade sequence. A nil Score or Order
// falls back to the defaults. No data is dropped: every input target appears
// exactly once in the output.
func Aggregate(results []TargetResult, policy Policy) FleetResult {
	if policy.Score == nil {
		policy.Score = DefaultScore
	}
	if policy.Order == nil {
		policy.Order = DefaultOrder
	}

	fleet := FleetResult{Status: SeverityPass}
	scored := make([]TargetResult, len(results))
	for i, r := range results {
		r.Score = policy.Score(r.Counts)
		scored[i] = r

		fleet.Counts.merge(r.Counts)
		if r.Status.Worse(fleet.Status) {
			fleet.Status = r.Status
		}
	}

	order := policy.Order(scored)
	fleet.Targets = make([]TargetResult, 0, len(scored))
	fleet.UpgradeOrder = make([]string, 0, len(scored))
	for _, idx := range order {
		fleet.Targets = append(fleet.Targets, scored[idx])
		fleet.UpgradeOrder = append(fleet.UpgradeOrder, scored[idx].Target.Identifier)
	}
	return fleet
}
