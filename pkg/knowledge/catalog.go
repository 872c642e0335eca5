// Package knowledge holds the embedded MySQL 8.0 compatibility catalogue:
// reserved words, removed and renamed server parameters, authentication
// plugin status, SQL modes, storage engines, deprecated functions, and
// integer capacity limits. Checks consult the catalogue instead of carrying
// their own lists.
package knowledge

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed data/mysql80.toml
var catalogFS embed.FS

// ParameterChange describes a server parameter that is removed or renamed in
// the target version.
type ParameterChange struct {
	Name        string `toml:"name"`
	Note        string `toml:"note"`
	Replacement string `toml:"replacement"`
}

// FunctionChange describes a SQL function deprecated or removed in the
// target version and what replaces it.
type FunctionChange struct {
	Name        string `toml:"name"`
	Replacement string `toml:"replacement"`
}

// IntegerType carries the capacity limits of one integer column type. The
// maxima are serialized as strings because unsigned bigint exceeds the TOML
// integer range.
type IntegerType struct {
	DataType    string `toml:"data_type"`
	SignedMax   string `toml:"signed_max"`
	UnsignedMax string `toml:"unsigned_max"`
}

// Catalog is the parsed compatibility catalogue.
type Catalog struct {
	SchemaVersion     string              `toml:"schema_version"`
	ReservedWords     map[string][]string `toml:"reserved_words"`
	RemovedParameters []ParameterChange   `toml:"removed_parameters"`
	RenamedParameters []ParameterChange   `toml:"renamed_parameters"`
	SQLModes          struct {
		Removed    []string `toml:"removed"`
		Deprecated []string `toml:"deprecated"`
	} `toml:"sql_modes"`
	AuthPlugins struct {
		Removed    []string `toml:"removed"`
		Deprecated []string `toml:"deprecated"`
		Superseded []string `toml:"superseded"`
	} `toml:"auth_plugins"`
	StorageEngines struct {
		Preferred string   `toml:"preferred"`
		Supported []string `toml:"supported"`
	} `toml:"storage_engines"`
	DeprecatedFunctions []FunctionChange `toml:"deprecated_functions"`
	IntegerTypes        []IntegerType    `toml:"integer_types"`
}

var (
	loadOnce    sync.Once
	loadedCat   *Catalog
	loadedError error
)

// Load parses the embedded catalogue once and returns the shared instance.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		data, err := catalogFS.ReadFile("data/mysql80.toml")
		if err != nil {
			loadedError = fmt.Errorf("read catalogue: %w", err)
			return
		}
		loadedCat, loadedError = Parse(data)
	})
	return loadedCat, loadedError
}

// Parse decodes a catalogue document from TOML bytes.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(cat.ReservedWords) == 0 {
		return nil, fmt.Errorf("catalogue has no reserved word lists")
	}
	return &cat, nil
}

// ReservedWordsFor returns the uppercase reserved-word set for the given
// target version. When the exact version is not catalogued, the highest
// catalogued version at or below the target is used; if none qualifies the
// lowest catalogued version applies.
func (c *Catalog) ReservedWordsFor(targetVersion string) map[string]struct{} {
	versions := make([]string, 0, len(c.ReservedWords))
	for v := range c.ReservedWords {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareDotted(versions[i], versions[j]) < 0
	})

	chosen := versions[0]
	for _, v := range versions {
		if compareDotted(v, targetVersion) <= 0 {
			chosen = v
		}
	}

	set := make(map[string]struct{}, len(c.ReservedWords[chosen]))
	for _, word := range c.ReservedWords[chosen] {
		set[strings.ToUpper(word)] = struct{}{}
	}
	return set
}

// IntegerMax returns the maximum representable value for an auto-increment
// column of the given data type and signedness.
func (c *Catalog) IntegerMax(dataType string, unsigned bool) (uint64, bool) {
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	for _, t := range c.IntegerTypes {
		if t.DataType != dataType {
			continue
		}
		raw := t.SignedMax
		if unsigned {
			raw = t.UnsignedMax
		}
		max, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return max, true
	}
	return 0, false
}

// EngineSupported reports whether the storage engine survives the upgrade.
func (c *Catalog) EngineSupported(engine string) bool {
	for _, e := range c.StorageEngines.Supported {
		if strings.EqualFold(e, engine) {
			return true
		}
	}
	return false
}

func compareDotted(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}
