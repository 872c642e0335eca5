package assess

// Severity classifies a single compatibility finding. The producing check is
// the only component allowed to assign it; aggregation counts severities but
// never re-derives them.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityPass     Severity = "pass"
)

// rank orders severities worst-first for status folding.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	case SeverityPass:
		return 3
	default:
		return 4
	}
}

// Worse reports whether s is more severe than other.
func (s Severity) Worse(other Severity) bool {
	return s.rank() < other.rank()
}

// TargetKind distinguishes standalone instances from clustered endpoints.
type TargetKind string

const (
	KindStandalone TargetKind = "standalone"
	KindClustered  TargetKind = "clustered"
)

// Target identifies one database endpoint under assessment. It is built at
// run start, immutable for the duration of the run, and discarded after the
// report is serialized.
type Target struct {
	Identifier    string     `json:"identifier"`
	Kind          TargetKind `json:"kind"`
	EngineVersion string     `json:"engine_version"`
	TargetVersion string     `json:"target_version"`
}

// Finding is one reported compatibility observation. Zero or more per check
// per target; immutable once created.
type Finding struct {
	CheckKey string   `json:"check_key"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Object is the fully qualified database object the finding refers to,
	// e.g. "app.orders" or "app.orders.rank", when one exists.
	Object string `json:"object,omitempty"`
	// Metric carries the numeric detail behind threshold-based findings,
	// e.g. the auto-increment capacity percentage.
	Metric float64 `json:"metric,omitempty"`
}

// CheckFailure records a check that could not produce findings. Failures are
// tracked apart from findings so an errored check never inflates Pass counts.
type CheckFailure struct {
	CheckKey string `json:"check_key"`
	Reason   string `json:"reason"`
}

// SeverityCounts tallies findings by severity for one target or the fleet.
type SeverityCounts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Pass     int `json:"pass"`
}

// Add records one finding of the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityWarning:
		c.Warning++
	case SeverityInfo:
		c.Info++
	case SeverityPass:
		c.Pass++
	}
}

// Total is the number of counted findings.
func (c SeverityCounts) Total() int {
	return c.Critical + c.Warning + c.Info + c.Pass
}

// merge accumulates another tally into c.
func (c *SeverityCounts) merge(other SeverityCounts) {
	c.Critical += other.Critical
	c.Warning += other.Warning
	c.Info += other.Info
	c.Pass += other.Pass
}

// TargetResult is the full outcome of assessing one target.
type TargetResult struct {
	Target   Target         `json:"target"`
	Findings []Finding      `json:"findings"`
	Failures []CheckFailure `json:"failures,omitempty"`
	Skipped  []CheckFailure `json:"skipped,omitempty"`
	Counts   SeverityCounts `json:"counts"`
	Status   Severity       `json:"status"`
	Score    int            `json:"score"`
}

// NewTargetResult folds findings into counts and an overall status. The
// status is the worst severity present; a target with no findings at all is
// treated as Pass. Score is filled in by Aggregate.
func NewTargetResult(target Target, findings []Finding, failures, skipped []CheckFailure) TargetResult {
	result := TargetResult{
		Target:   target,
		Findings: findings,
		Failures: failures,
		Skipped:  skipped,
		Status:   SeverityPass,
	}
	for _, f := range findings {
		result.Counts.Add(f.Severity)
		if f.Severity.Worse(result.Status) {
			result.Status = f.Severity
		}
	}
	return result
}

// FleetResult is the outcome of one fleet run. Targets are listed in upgrade
// order; UpgradeOrder repeats their identifiers for renderers that only need
// the sequence.
type FleetResult struct {
	Targets      []TargetResult `json:"targets"`
	Status       Severity       `json:"status"`
	UpgradeOrder []string       `json:"upgrade_order"`
	Counts       SeverityCounts `json:"counts"`
}
