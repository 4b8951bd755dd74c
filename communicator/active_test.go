package communicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*ActiveDataHandler[string], *KeyMapper[string]) {
	t.Helper()
	keys := NewKeyMapper[string](nil)
	return newActiveDataHandler[string](keys, nil), keys
}

func TestDroppedIsSubsetOfActive(t *testing.T) {
	h, keys := newHandler(t)
	h.AddActiveData([]string{"a", "b", "c"})
	h.AddActiveData([]string{"a"})
	require.Equal(t, []string{"1", "2", "3"}, h.ActiveKeys())

	h.DropActiveData(keys.Key("b"))
	h.DropActiveData("42")
	require.Equal(t, []string{"2"}, h.DroppedKeys())
	for _, k := range h.DroppedKeys() {
		require.Contains(t, h.ActiveKeys(), k)
	}

	h.CleanUp([]string{"c"})
	require.Empty(t, h.DroppedKeys())
	require.Equal(t, []string{"1", "3"}, h.ActiveKeys())
	require.False(t, keys.Has("b"))
	require.True(t, h.IsActive("a"))
	require.False(t, h.IsActive("b"))
}

func TestCleanUpKeepsRepushedRows(t *testing.T) {
	h, keys := newHandler(t)
	h.AddActiveData([]string{"a", "b"})
	h.DropActiveData(keys.Key("a"))
	h.DropActiveData(keys.Key("b"))

	h.CleanUp([]string{"a"})
	require.Equal(t, []string{"1"}, h.ActiveKeys())
	require.Equal(t, "1", keys.Key("a"))
}

func TestGenerateDataWritesKey(t *testing.T) {
	h, _ := newHandler(t)
	row := JSONObject{}
	h.GenerateData("a", row)
	require.Equal(t, JSONObject{KeyField: "1"}, row)
}

func TestDestroyAllData(t *testing.T) {
	h, keys := newHandler(t)
	h.AddActiveData([]string{"a", "b"})
	h.DropActiveData("1")
	h.DestroyAllData()
	require.Empty(t, h.ActiveKeys())
	require.Empty(t, h.DroppedKeys())
	require.Zero(t, keys.Len())
	require.Empty(t, h.ActiveData())
}

func TestBookkeepingFailures(t *testing.T) {
	h, keys := newHandler(t)
	h.AddActiveData([]string{"a"})
	h.DropActiveData("1")
	keys.Remove("a")
	require.PanicsWithValue(t, `bookkeeping failure: no data object to match key "1"`, func() {
		h.CleanUp(nil)
	})

	h2, _ := newHandler(t)
	require.Panics(t, func() { h2.DestroyData("never seen") })
}

func TestRange(t *testing.T) {
	r := WithLength(5, 3)
	require.Equal(t, Range{Start: 5, End: 8}, r)
	require.Equal(t, 3, r.Length())
	require.True(t, r.Contains(7))
	require.False(t, r.Contains(8))
	require.Equal(t, "[5..8)", r.String())

	require.True(t, WithLength(2, 0).IsEmpty())
	require.True(t, WithLength(2, -4).IsEmpty())
	require.Equal(t, Range{Start: 10, End: math.MaxInt}, WithLength(10, math.MaxInt))
	require.Equal(t, Range{Start: 4, End: 4}, Between(4, 1))
	require.Zero(t, Range{Start: 3, End: 1}.Length())
}
