package communicator

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id   int
	name string
}

func TestKeyStability(t *testing.T) {
	m := NewKeyMapper[string](nil)
	k := m.Key("x")
	require.Equal(t, k, m.Key("x"))
	require.NotEqual(t, k, m.Key("y"))
	require.True(t, m.Has("x"))
	require.True(t, m.HasKey(k))

	got, ok := m.Get(k)
	require.True(t, ok)
	require.Equal(t, "x", got)
	_, ok = m.Get("nope")
	require.False(t, ok)
}

func TestKeyNonReuse(t *testing.T) {
	m := NewKeyMapper[string](nil)
	seen := map[string]bool{}
	for round := 0; round < 3; round++ {
		k := m.Key("x")
		require.False(t, seen[k], "key %s reissued", k)
		seen[k] = true
		m.Remove("x")
		require.False(t, m.Has("x"))
	}

	k := m.Key("y")
	m.RemoveAll()
	require.Zero(t, m.Len())
	require.NotEqual(t, k, m.Key("y"))
}

func TestKeyMapperIdentity(t *testing.T) {
	m := NewKeyMapper[item](nil)
	m.SetIdentifierGetter(func(i item) any { return i.id })

	k := m.Key(item{1, "old"})
	require.Equal(t, k, m.Key(item{1, "new"}))

	m.Refresh(item{1, "new"})
	got, _ := m.Get(k)
	require.Equal(t, "new", got.name)

	// refreshing an unknown item does not register it
	m.Refresh(item{2, "other"})
	require.False(t, m.Has(item{2, "other"}))
	require.Equal(t, 1, m.Len())
}

func TestULIDKeys(t *testing.T) {
	gen := ULIDKeys()
	keys := make([]string, 100)
	for i := range keys {
		keys[i] = gen.NextKey()
	}
	assert.True(t, slices.IsSorted(keys))
	assert.Len(t, slices.Compact(slices.Clone(keys)), len(keys))
	for _, k := range keys {
		assert.Len(t, k, 26)
		assert.Equal(t, strings.ToUpper(k), k)
	}

	m := NewKeyMapper[string](gen)
	require.Len(t, m.Key("x"), 26)
}

func TestSequentialKeys(t *testing.T) {
	gen := SequentialKeys()
	require.Equal(t, []string{"1", "2", "3"}, []string{gen.NextKey(), gen.NextKey(), gen.NextKey()})
	// generators do not share state
	require.Equal(t, "1", SequentialKeys().NextKey())
}
