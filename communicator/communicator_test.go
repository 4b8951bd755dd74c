package communicator

import (
	"context"
	"errors"
	"iter"
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/magpierre/datacomm/provider"
)

var errBoom = errors.New("boom")

type signal struct {
	kind  string
	size  int
	first int
	rows  []JSONObject
}

// recordingRPC keeps every signal in order and can fail one signal kind.
type recordingRPC struct {
	signals []signal
	failOn  string
}

func (r *recordingRPC) Reset(_ context.Context, size int) error {
	if r.failOn == "reset" {
		return errBoom
	}
	r.signals = append(r.signals, signal{kind: "reset", size: size})
	return nil
}

func (r *recordingRPC) SetData(_ context.Context, first int, rows []JSONObject) error {
	if r.failOn == "setData" {
		return errBoom
	}
	r.signals = append(r.signals, signal{kind: "setData", first: first, rows: rows})
	return nil
}

func (r *recordingRPC) UpdateData(_ context.Context, rows []JSONObject) error {
	if r.failOn == "updateData" {
		return errBoom
	}
	r.signals = append(r.signals, signal{kind: "updateData", rows: rows})
	return nil
}

func (r *recordingRPC) take() []signal {
	s := r.signals
	r.signals = nil
	return s
}

func row(key, data string) JSONObject {
	return JSONObject{KeyField: key, DataField: data}
}

func diffSignals(t *testing.T, want, got []signal) {
	t.Helper()
	if d := cmp.Diff(want, got, cmp.AllowUnexported(signal{})); d != "" {
		t.Fatalf("signals mismatch (-want +got):\n%s", d)
	}
}

func payload() *GeneratorFuncs[string] {
	return &GeneratorFuncs[string]{
		Generate: func(s string, row JSONObject) { row[DataField] = s },
	}
}

// newLetters binds a list of strings without an initial push and runs the
// initial cycle.
func newLetters(t *testing.T, items ...string) (*DataCommunicator[string], *recordingRPC, *provider.ListDataProvider[string]) {
	t.Helper()
	rpc := &recordingRPC{}
	c := New[string](rpc, Config{})
	require.NoError(t, c.SetMinPushSize(0))
	require.NoError(t, c.AddDataGenerator(payload()))

	list := provider.NewListDataProvider(items)
	_, err := SetDataProvider[string, provider.Predicate[string]](c, list, nil)
	require.NoError(t, err)

	require.NoError(t, c.BeforeClientResponse(context.Background(), true))
	diffSignals(t, []signal{{kind: "reset", size: len(items)}}, rpc.take())
	return c, rpc, list
}

func TestRequestRowsPushesWindow(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C", "D", "E")

	c.RequestRows(0, 3, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	diffSignals(t, []signal{{kind: "setData", first: 0, rows: []JSONObject{
		row("1", "A"), row("2", "B"), row("3", "C"),
	}}}, rpc.take())
	require.Equal(t, []string{"1", "2", "3"}, c.ActiveDataHandler().ActiveKeys())
	require.ElementsMatch(t, []string{"A", "B", "C"}, c.ActiveData())
	require.True(t, c.PushRows().IsEmpty())
	require.False(t, c.IsDirty())
}

func TestRefreshKeepsKey(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C", "D", "E")
	c.RequestRows(0, 3, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	rpc.take()

	c.Refresh("B")
	c.Refresh("B")
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	diffSignals(t, []signal{{kind: "updateData", rows: []JSONObject{row("2", "B")}}}, rpc.take())
	require.Equal(t, []string{"1", "2", "3"}, c.ActiveDataHandler().ActiveKeys())
}

func TestDroppedRowIsDestroyedAfterPush(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C", "D", "E")
	c.RequestRows(0, 3, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	rpc.take()

	keyA := c.KeyMapper().Key("A")
	c.DropRows([]string{keyA})
	require.Equal(t, []string{keyA}, c.ActiveDataHandler().DroppedKeys())

	c.RequestRows(1, 3, 0, 3)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	diffSignals(t, []signal{{kind: "setData", first: 1, rows: []JSONObject{
		row("2", "B"), row("3", "C"), row("4", "D"),
	}}}, rpc.take())
	_, ok := c.KeyMapper().Get(keyA)
	require.False(t, ok)
	require.Equal(t, []string{"2", "3", "4"}, c.ActiveDataHandler().ActiveKeys())
	require.Empty(t, c.ActiveDataHandler().DroppedKeys())

	// a revived row never gets its retired key back
	c.RequestRows(0, 1, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	diffSignals(t, []signal{{kind: "setData", first: 0, rows: []JSONObject{row("5", "A")}}}, rpc.take())
}

func TestRedeliveredDropIsKept(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C")
	c.RequestRows(0, 2, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	rpc.take()

	c.DropRows([]string{"1", "unknown"})
	c.RequestRows(0, 2, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	require.Equal(t, []string{"1", "2"}, c.ActiveDataHandler().ActiveKeys())
	require.Empty(t, c.ActiveDataHandler().DroppedKeys())
	require.Equal(t, "1", c.KeyMapper().Key("A"))
}

func TestPushingSameWindowTwiceIsIdempotent(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C", "D")
	for range 2 {
		c.RequestRows(1, 2, 0, 0)
		require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	}
	signals := rpc.take()
	require.Len(t, signals, 2)
	require.Equal(t, signals[0], signals[1])
	require.Equal(t, []string{"1", "2"}, c.ActiveDataHandler().ActiveKeys())
}

func TestProviderSwapResetsBeforePush(t *testing.T) {
	ctrl := gomock.NewController(t)
	rpc := NewMockClientRPC(ctrl)
	ctx := context.Background()

	c := New[string](rpc, Config{MinPushSize: 2})
	_, err := SetDataProvider[string, provider.Predicate[string]](c, provider.NewListDataProvider([]string{"A", "B", "C"}), nil)
	require.NoError(t, err)

	gomock.InOrder(
		rpc.EXPECT().Reset(gomock.Any(), 3),
		rpc.EXPECT().SetData(gomock.Any(), 0, []JSONObject{{KeyField: "1"}, {KeyField: "2"}}),
	)
	require.NoError(t, c.BeforeClientResponse(ctx, true))

	c.RequestRows(1, 2, 0, 2)
	_, err = SetDataProvider[string, provider.Predicate[string]](c, provider.NewListDataProvider([]string{"W", "X", "Y", "Z"}), nil)
	require.NoError(t, err)
	require.Empty(t, c.ActiveData())
	require.Equal(t, Between(0, 2), c.PushRows())

	gomock.InOrder(
		rpc.EXPECT().Reset(gomock.Any(), 4),
		rpc.EXPECT().SetData(gomock.Any(), 0, []JSONObject{{KeyField: "3"}, {KeyField: "4"}}),
	)
	require.NoError(t, c.BeforeClientResponse(ctx, false))
}

func TestInMemoryWindowing(t *testing.T) {
	rpc := &recordingRPC{}
	c := New[int](rpc, Config{})
	require.NoError(t, c.SetMinPushSize(0))
	require.NoError(t, c.AddDataGenerator(&GeneratorFuncs[int]{
		Generate: func(i int, row JSONObject) { row[DataField] = i },
	}))
	_, err := SetDataProvider[int, provider.Predicate[int]](c, provider.NewListDataProvider([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}), nil)
	require.NoError(t, err)
	c.SetInMemorySorting(provider.ComparingBy(func(i int) int { return i }, provider.Descending))
	// back-end sorting is ignored for in-memory providers
	c.SetBackEndSorting([]provider.SortOrder{provider.Asc("value")})

	c.RequestRows(5, 3, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	signals := rpc.take()
	require.Len(t, signals, 2)
	require.Equal(t, "reset", signals[0].kind)
	require.Equal(t, 10, signals[0].size)
	var got []any
	for _, r := range signals[1].rows {
		got = append(got, r[DataField])
	}
	require.Equal(t, []any{4, 3, 2}, got)
	require.Equal(t, 5, signals[1].first)
}

func TestBackEndQuery(t *testing.T) {
	var fetched []provider.Query[int, string]
	var counted []provider.Query[int, string]
	p, err := provider.NewBackEndDataProvider(
		func(_ context.Context, q provider.Query[int, string]) (iter.Seq[int], error) {
			fetched = append(fetched, q)
			out := make([]int, 0, q.Limit())
			for i := q.Offset(); i < min(q.RequestedRangeEnd(), 100); i++ {
				out = append(out, i)
			}
			return slices.Values(out), nil
		},
		func(_ context.Context, q provider.Query[int, string]) (int, error) {
			counted = append(counted, q)
			return 100, nil
		},
	)
	require.NoError(t, err)

	rpc := &recordingRPC{}
	c := New[int](rpc, Config{MinPushSize: 5})
	initial := "odd"
	slot, err := SetDataProvider[int, string](c, p, &initial)
	require.NoError(t, err)
	c.SetBackEndSorting([]provider.SortOrder{provider.Desc("n")})

	require.NoError(t, c.BeforeClientResponse(context.Background(), true))
	require.Len(t, fetched, 1)
	require.Equal(t, 0, fetched[0].Offset())
	require.Equal(t, 5, fetched[0].Limit())
	require.Equal(t, []provider.SortOrder{provider.Desc("n")}, fetched[0].SortOrders())
	f, ok := fetched[0].Filter()
	require.True(t, ok)
	require.Equal(t, "odd", f)
	require.Len(t, counted, 1)

	require.NoError(t, slot("even"))
	require.True(t, c.IsResetPending())
	c.RequestRows(20, 10, 0, 5)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	require.Equal(t, 20, fetched[1].Offset())
	require.Equal(t, 10, fetched[1].Limit())
	f, _ = counted[1].Filter()
	require.Equal(t, "even", f)

	// the same filter again does not reset
	require.NoError(t, slot("even"))
	require.False(t, c.IsResetPending())

	_, err = SetDataProvider[int, string](c, provider.NewEmptyDataProvider[int, string](), nil)
	require.NoError(t, err)
	require.ErrorIs(t, slot("odd"), ErrFilterSlotInvalid)
}

func TestEmptyPushSchedulesReset(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B")
	c.RequestRows(10, 5, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	diffSignals(t, []signal{{kind: "setData", first: 10, rows: []JSONObject{}}}, rpc.take())
	require.True(t, c.IsResetPending())
	require.True(t, c.IsDirty())

	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	diffSignals(t, []signal{{kind: "reset", size: 2}}, rpc.take())
	require.False(t, c.IsResetPending())
}

func TestFailedCycleKeepsPendingWork(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C")
	c.RequestRows(0, 2, 0, 0)
	c.Refresh("C")
	rpc.failOn = "setData"

	require.ErrorIs(t, c.BeforeClientResponse(context.Background(), false), errBoom)
	require.Equal(t, WithLength(0, 2), c.PushRows())
	require.Equal(t, []string{"C"}, c.UpdatedData())
	require.Empty(t, c.ActiveData())

	rpc.failOn = ""
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	diffSignals(t, []signal{
		{kind: "setData", first: 0, rows: []JSONObject{row("1", "A"), row("2", "B")}},
		{kind: "updateData", rows: []JSONObject{row("3", "C")}},
	}, rpc.take())

	// C was never pushed, so its update key is retired again
	require.False(t, c.KeyMapper().Has("C"))
}

func TestResetFailureIsReported(t *testing.T) {
	c, rpc, _ := newLetters(t, "A")
	c.Reset()
	rpc.failOn = "reset"
	require.ErrorIs(t, c.BeforeClientResponse(context.Background(), false), errBoom)
	require.True(t, c.IsResetPending())
}

func TestProviderEvents(t *testing.T) {
	accessed := 0
	rpc := &recordingRPC{}
	c := New[string](rpc, Config{
		Access: func(fn func()) {
			accessed++
			fn()
		},
	})
	list := provider.NewListDataProvider([]string{"A", "B"})
	_, err := SetDataProvider[string, provider.Predicate[string]](c, list, nil)
	require.NoError(t, err)

	refreshed := []string{}
	require.NoError(t, c.AddDataGenerator(&GeneratorFuncs[string]{
		Refresh: func(s string) { refreshed = append(refreshed, s) },
	}))
	require.NoError(t, c.BeforeClientResponse(context.Background(), true))

	c.Attach()
	c.Attach()
	list.RefreshItem("B")
	require.Equal(t, []string{"B"}, c.UpdatedData())
	require.Equal(t, []string{"B"}, refreshed)
	require.False(t, c.IsResetPending())

	list.RefreshAll()
	require.True(t, c.IsResetPending())
	require.Equal(t, 2, accessed)

	c.Detach()
	list.RefreshItem("A")
	require.Equal(t, 2, accessed)
}

func TestOnDirty(t *testing.T) {
	calls := 0
	c := New[string](&recordingRPC{}, Config{OnDirty: func() { calls++ }})
	require.True(t, c.IsDirty())
	require.Zero(t, calls)

	require.NoError(t, c.BeforeClientResponse(context.Background(), true))
	require.False(t, c.IsDirty())

	c.RequestRows(0, 10, 0, 0)
	c.Refresh("x")
	c.Reset()
	require.Equal(t, 1, calls)

	// a reset scheduled by an empty push is announced like any other work
	calls = 0
	c = New[string](&recordingRPC{}, Config{OnDirty: func() { calls++ }})
	_, err := SetDataProvider[string, provider.Predicate[string]](c, provider.NewListDataProvider([]string{"A", "B"}), nil)
	require.NoError(t, err)
	require.NoError(t, c.BeforeClientResponse(context.Background(), true))
	c.RequestRows(10, 5, 0, 0)
	require.Equal(t, 1, calls)

	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	require.True(t, c.IsResetPending())
	require.True(t, c.IsDirty())
	require.Equal(t, 2, calls)

	c.Refresh("A")
	c.RequestRows(0, 2, 0, 0)
	require.Equal(t, 2, calls)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	require.False(t, c.IsDirty())
	c.Refresh("B")
	require.Equal(t, 3, calls)
}

func TestRequestRowsBeforeFirstRow(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B", "C", "D", "E", "F")

	c.RequestRows(-5, 8, 0, 0)
	require.Equal(t, WithLength(0, 3), c.PushRows())
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	diffSignals(t, []signal{{kind: "setData", first: 0, rows: []JSONObject{
		row("1", "A"), row("2", "B"), row("3", "C"),
	}}}, rpc.take())

	c.RequestRows(-5, 3, 0, 0)
	require.True(t, c.PushRows().IsEmpty())
	c.RequestRows(-5, -1, 0, 0)
	require.True(t, c.PushRows().IsEmpty())
}

func TestHugeWindowIsBoundedByTheData(t *testing.T) {
	c, rpc, _ := newLetters(t, "A", "B")
	c.RequestRows(1, math.MaxInt, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))
	diffSignals(t, []signal{{kind: "setData", first: 1, rows: []JSONObject{row("1", "B")}}}, rpc.take())

	p, err := provider.NewBackEndDataProvider(
		func(_ context.Context, q provider.Query[int, string]) (iter.Seq[int], error) {
			var out []int
			for i := q.Offset(); i < min(q.RequestedRangeEnd(), 3); i++ {
				out = append(out, i)
			}
			return slices.Values(out), nil
		},
		func(context.Context, provider.Query[int, string]) (int, error) { return 3, nil },
	)
	require.NoError(t, err)
	brpc := &recordingRPC{}
	b := New[int](brpc, Config{})
	require.NoError(t, b.SetMinPushSize(0))
	_, err = SetDataProvider[int, string](b, p, nil)
	require.NoError(t, err)
	require.NoError(t, b.BeforeClientResponse(context.Background(), true))
	brpc.take()

	b.RequestRows(1, math.MaxInt, 0, 0)
	require.NoError(t, b.BeforeClientResponse(context.Background(), false))
	got := brpc.take()
	require.Len(t, got, 1)
	require.Equal(t, 1, got[0].first)
	require.Len(t, got[0].rows, 2)
}

func TestGenerators(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := NewMockDataGenerator[string](ctrl)
	rpc := &recordingRPC{}
	c := New[string](rpc, Config{})
	require.NoError(t, c.SetMinPushSize(0))

	require.ErrorIs(t, c.AddDataGenerator(nil), ErrNilGenerator)
	require.ErrorIs(t, c.RemoveDataGenerator(nil), ErrNilGenerator)
	require.ErrorIs(t, c.RemoveDataGenerator(c.ActiveDataHandler()), ErrRemoveActiveDataHandler)
	require.NoError(t, c.AddDataGenerator(gen))
	require.NoError(t, c.AddDataGenerator(gen))
	require.Len(t, c.Generators(), 2)

	_, err := SetDataProvider[string, provider.Predicate[string]](c, provider.NewListDataProvider([]string{"A", "B"}), nil)
	require.NoError(t, err)

	gen.EXPECT().GenerateData(gomock.Any(), gomock.Any()).Do(func(item string, row JSONObject) {
		row[SelectedField] = item == "B"
	}).Times(3)
	gen.EXPECT().DestroyData("A")

	c.RequestRows(0, 2, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), true))
	c.DropRows([]string{"1"})
	c.RequestRows(1, 1, 0, 0)
	require.NoError(t, c.BeforeClientResponse(context.Background(), false))

	signals := rpc.take()
	require.Len(t, signals, 3)
	diffSignals(t, []signal{{kind: "setData", first: 1, rows: []JSONObject{{KeyField: "2", SelectedField: true}}}}, signals[2:])

	require.NoError(t, c.RemoveDataGenerator(gen))
	require.Len(t, c.Generators(), 1)
}

func TestSelectionGenerator(t *testing.T) {
	row := JSONObject{}
	g := SelectionGenerator(func(s string) bool { return s == "x" })
	g.GenerateData("y", row)
	require.NotContains(t, row, SelectedField)
	g.GenerateData("x", row)
	require.Equal(t, true, row[SelectedField])
	require.NotPanics(t, func() {
		g.DestroyData("x")
		g.DestroyAllData()
		g.RefreshData("x")
	})
}

func TestSetMinPushSize(t *testing.T) {
	c := New[string](&recordingRPC{}, Config{})
	require.Equal(t, DefaultMinPushSize, c.MinPushSize())
	require.Equal(t, Between(0, DefaultMinPushSize), c.PushRows())
	require.ErrorIs(t, c.SetMinPushSize(-1), ErrNegativePushSize)
	require.NoError(t, c.SetMinPushSize(0))
	require.Equal(t, 0, c.MinPushSize())
}

func TestNilProvider(t *testing.T) {
	c := New[string](&recordingRPC{}, Config{})
	_, err := SetDataProvider[string, string](c, nil, nil)
	require.ErrorIs(t, err, ErrNilProvider)
	_, ok := c.DataProvider().(*provider.BackEndDataProvider[string, any])
	require.True(t, ok)
}
