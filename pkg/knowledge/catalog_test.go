package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCatalogue(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cat)

	assert.NotEmpty(t, cat.ReservedWords)
	assert.NotEmpty(t, cat.RemovedParameters)
	assert.NotEmpty(t, cat.AuthPlugins.Removed)
	assert.Equal(t, "InnoDB", cat.StorageEngines.Preferred)
}

func TestReservedWordsFor(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	words := cat.ReservedWordsFor("8.0")
	for _, w := range []string{"SYSTEM", "RANK", "LEAD", "LAG", "GROUPS", "OVER"} {
		_, ok := words[w]
		assert.True(t, ok, "expected %s in the 8.0 reserved set", w)
	}

	// Patch releases resolve to the highest catalogued version at or below.
	assert.Equal(t, words, cat.ReservedWordsFor("8.0.36"))

	// A target below every catalogued version falls back to the lowest list
	// instead of an empty set.
	assert.NotEmpty(t, cat.ReservedWordsFor("5.6"))
}

func TestIntegerMax(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	tests := []struct {
		dataType string
		unsigned bool
		want     uint64
	}{
		{"tinyint", true, 255},
		{"tinyint", false, 127},
		{"smallint", true, 65535},
		{"mediumint", true, 16777215},
		{"int", true, 4294967295},
		{"int", false, 2147483647},
		{"bigint", true, 18446744073709551615},
		{"bigint", false, 9223372036854775807},
	}
	for _, tt := range tests {
		got, ok := cat.IntegerMax(tt.dataType, tt.unsigned)
		require.True(t, ok, "%s unsigned=%v", tt.dataType, tt.unsigned)
		assert.Equal(t, tt.want, got, "%s unsigned=%v", tt.dataType, tt.unsigned)
	}

	_, ok := cat.IntegerMax("varchar", false)
	assert.False(t, ok)
}

func TestEngineSupported(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	assert.True(t, cat.EngineSupported("InnoDB"))
	assert.True(t, cat.EngineSupported("innodb"))
	assert.True(t, cat.EngineSupported("MyISAM"))
	assert.False(t, cat.EngineSupported("TokuDB"))
}

func TestParseRejectsEmptyCatalogue(t *testing.T) {
	_, err := Parse([]byte(`schema_version = "1"`))
	assert.Error(t, err)
}
