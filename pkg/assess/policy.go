package assess

import (
	"sort"
	"strconv"
	"strings"
)

// ScorePolicy maps a target's severity counts to a 0-100 readiness score.
// Implementations must be monotonically decreasing in Critical and Warning
// counts, return at least 80 when both are zero, and stay below 60 whenever
// a Critical finding is present.
type ScorePolicy func(SeverityCounts) int

// OrderPolicy returns the recommended upgrade sequence as a permutation of
// the input indices. It must be deterministic and total: every index appears
// exactly once.
type OrderPolicy func([]TargetResult) []int

// Policy bundles the tunable scoring and ordering functions for one run.
type Policy struct {
	Score ScorePolicy
	Order OrderPolicy
}

// DefaultPolicy returns the documented default scoring and ordering rules.
func DefaultPolicy() Policy {
	return Policy{Score: DefaultScore, Order: DefaultOrder}
}

// DefaultScore computes 100 - 25*Critical - 5*Warning - 1*Info, floored at 80
// when no Critical or Warning findings exist and capped at 55 when any
// Critical is present, clamped to [0, 100].
func DefaultScore(c SeverityCounts) int {
	score := 100 - 25*c.Critical - 5*c.Warning - c.Info
	if c.Critical == 0 && c.Warning == 0 && score < 80 {
		score = 80
	}
	if c.Critical > 0 && score > 55 {
		score = 55
	}
	if score < 0 {
		score = 0
	}
	return score
}

// DefaultOrder upgrades clean targets first: ascending by presence of
// Critical findings, then by current engine version, then by stable
// discovery order.
func DefaultOrder(results []TargetResult) []int {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := results[order[a]], results[order[b]]
		ca, cb := ra.Counts.Critical > 0, rb.Counts.Critical > 0
		if ca != cb {
			return !ca
		}
		if cmp := CompareVersions(ra.Target.EngineVersion, rb.Target.EngineVersion); cmp != 0 {
			return cmp < 0
		}
		return order[a] < order[b]
	})
	return order
}

// CompareVersions compares dotted numeric versions such as "5.7.44" and
// "8.0.36", ignoring any build suffix after the first dash. Missing segments
// compare as zero; non-numeric segments fall back to string comparison.
func CompareVersions(a, b string) int {
	pa := splitVersion(a)
	pb := splitVersion(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		sa, sb := "0", "0"
		if i < len(pa) {
			sa = pa[i]
		}
		if i < len(pb) {
			sb = pb[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if sa != sb {
				return strings.Compare(sa, sb)
			}
		}
	}
	return 0
}

func splitVersion(v string) []string {
	v = strings.TrimSpace(v)
	if idx := strings.IndexByte(v, '-'); idx >= 0 {
		v = v[:idx]
	}
	if v == "" {
		return nil
	}
	return strings.Split(v, ".")
}
