// Package report builds and serializes the versioned assessment document.
// The document is append-only across schema versions: renderers written
// against version "1" keep working when fields are added.
package report

import (
	"fmt"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
)

// SchemaVersion identifies the document layout. Bump only for breaking
// changes; additions keep the version.
const SchemaVersion = "1"

// Document is the serialized form of one fleet run.
type Document struct {
	SchemaVersion string             `json:"schema_version"`
	GeneratedAt   string             `json:"generated_at"`
	TargetVersion string             `json:"target_version"`
	Status        assess.Severity    `json:"status"`
	Counts        assess.SeverityCounts `json:"counts"`
	UpgradeOrder  []string           `json:"upgrade_order"`
	Targets       []assess.TargetResult `json:"targets"`
}

// ReportError is the only fatal error class in the engine: a document that
// fails its own invariants must never be written, because a consumer acting
// on it would act on lies.
type ReportError struct {
	Reason string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report invariant violated: %s", e.Reason)
}

// Build assembles and validates a document from a fleet result. generatedAt
// is passed in rather than read from the clock so documents are reproducible
// in tests.
func Build(result assess.FleetResult, targetVersion, generatedAt string) (*Document, error) {
	doc := &Document{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt,
		TargetVersion: targetVersion,
		Status:        result.Status,
		Counts:        result.Counts,
		UpgradeOrder:  result.UpgradeOrder,
		Targets:       result.Targets,
	}
	if err := validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// validate enforces the count/finding invariants before serialization.
func validate(doc *Document) error {
	if len(doc.UpgradeOrder) != len(doc.Targets) {
		return &ReportError{Reason: fmt.Sprintf(
			"upgrade order lists %d targets, document has %d", len(doc.UpgradeOrder), len(doc.Targets))}
	}

	var fleet assess.SeverityCounts
	for i, target := range doc.Targets {
		if doc.UpgradeOrder[i] != target.Target.Identifier {
			return &ReportError{Reason: fmt.Sprintf(
				"upgrade order position %d is %q, target list has %q", i, doc.UpgradeOrder[i], target.Target.Identifier)}
		}

		var counts assess.SeverityCounts
		for _, f := range target.Findings {
			counts.Add(f.Severity)
		}
		if counts != target.Counts {
			return &ReportError{Reason: fmt.Sprintf(
				"target %s counts %+v do not match findings %+v", target.Target.Identifier, target.Counts, counts)}
		}
		if counts.Total() != len(target.Findings) {
			return &ReportError{Reason: fmt.Sprintf(
				"target %s has %d findings but %d counted", target.Target.Identifier, len(target.Findings), counts.Total())}
		}

		fleet.Critical += counts.Critical
		fleet.Warning += counts.Warning
		fleet.Info += counts.Info
		fleet.Pass += counts.Pass
	}
	if fleet != doc.Counts {
		return &ReportError{Reason: fmt.Sprintf(
			"fleet counts %+v do not match per-target sums %+v", doc.Counts, fleet)}
	}
	return nil
}
