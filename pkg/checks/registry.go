package checks

import (
	"fmt"
	"sort"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/knowledge"
)

// Registry holds the catalogue in its fixed registration order. Findings in
// a report always appear in this order regardless of filters.
type Registry struct {
	checks []Check
}

// NewRegistry builds the full catalogue against the given knowledge
// catalogue. The registration order below is the report order.
func NewRegistry(cat *knowledge.Catalog) *Registry {
	return &Registry{checks: []Check{
		&versionCompatCheck{},
		&reservedKeywordsCheck{cat: cat},
		&authPluginsCheck{cat: cat},
		&charsetCheck{},
		&storageEnginesCheck{cat: cat},
		&sqlModeCheck{cat: cat},
		&partitioningCheck{},
		&spatialSRIDCheck{},
		&foreignKeysCheck{},
		&triggersCheck{cat: cat},
		&routinesCheck{cat: cat},
		&viewsCheck{},
		&jsonColumnsCheck{},
		&autoIncrementCheck{cat: cat},
		&duplicateIndexesCheck{},
		&removedParamsCheck{cat: cat},
		&engineSettingsCheck{},
		&queryCacheCheck{},
		&replicationCheck{},
		&collationsCheck{},
		&temporalTypesCheck{},
		&userPrivilegesCheck{},
		&schemaInventoryCheck{},
	}}
}

// All returns the catalogue in registration order.
func (r *Registry) All() []Check {
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// Filter narrows the catalogue. An empty include list means all checks;
// exclude wins over include. Unknown keys are an error so a typo in a config
// file fails loudly instead of silently skipping a check.
func (r *Registry) Filter(include, exclude []string) ([]Check, error) {
	known := make(map[string]bool, len(r.checks))
	for _, c := range r.checks {
		known[c.Key()] = true
	}
	for _, key := range append(append([]string{}, include...), exclude...) {
		if !known[key] {
			return nil, fmt.Errorf("unknown check key %q (see `fleet-precheck checks`)", key)
		}
	}

	included := make(map[string]bool, len(include))
	for _, key := range include {
		included[key] = true
	}
	excluded := make(map[string]bool, len(exclude))
	for _, key := range exclude {
		excluded[key] = true
	}

	var out []Check
	for _, c := range r.checks {
		if len(include) > 0 && !included[c.Key()] {
			continue
		}
		if excluded[c.Key()] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Keys returns all check keys sorted for display.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.checks))
	for _, c := range r.checks {
		keys = append(keys, c.Key())
	}
	sort.Strings(keys)
	return keys
}
