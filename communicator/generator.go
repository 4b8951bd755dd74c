//go:generate mockgen -package $GOPACKAGE -source $GOFILE -destination generator_mock.go

package communicator

// Well-known row object fields.
const (
	// KeyField holds the row key written by the active data handler.
	KeyField = "key"
	// DataField holds the row payload.
	DataField = "data"
	// SelectedField marks selected rows by its presence.
	SelectedField = "selected"
)

// JSONObject is the serialized form of a row sent to the client.
type JSONObject map[string]any

// DataGenerator adds fields to the serialized rows and releases per-row
// resources when a row leaves the client.
//
// Generators are compared with ==, so implementations must be comparable,
// typically pointers.
type DataGenerator[T any] interface {
	GenerateData(item T, row JSONObject)
	DestroyData(item T)
}

// AllDataDestroyer is implemented by generators that release everything at
// once when the data provider is replaced.
type AllDataDestroyer interface {
	DestroyAllData()
}

// DataRefresher is implemented by generators that cache per-row state which
// must be updated when a single item changes.
type DataRefresher[T any] interface {
	RefreshData(item T)
}

// GeneratorFuncs adapts plain functions to DataGenerator. Nil functions are
// skipped. Register it by pointer.
type GeneratorFuncs[T any] struct {
	Generate   func(item T, row JSONObject)
	Destroy    func(item T)
	DestroyAll func()
	Refresh    func(item T)
}

// GenerateData implements DataGenerator.
func (g *GeneratorFuncs[T]) GenerateData(item T, row JSONObject) {
	if g.Generate != nil {
		g.Generate(item, row)
	}
}

// DestroyData implements DataGenerator.
func (g *GeneratorFuncs[T]) DestroyData(item T) {
	if g.Destroy != nil {
		g.Destroy(item)
	}
}

// DestroyAllData implements AllDataDestroyer.
func (g *GeneratorFuncs[T]) DestroyAllData() {
	if g.DestroyAll != nil {
		g.DestroyAll()
	}
}

// RefreshData implements DataRefresher.
func (g *GeneratorFuncs[T]) RefreshData(item T) {
	if g.Refresh != nil {
		g.Refresh(item)
	}
}

// SelectionGenerator marks the rows for which selected returns true with the
// SelectedField.
func SelectionGenerator[T any](selected func(T) bool) *GeneratorFuncs[T] {
	return &GeneratorFuncs[T]{
		Generate: func(item T, row JSONObject) {
			if selected(item) {
				row[SelectedField] = true
			}
		},
	}
}
