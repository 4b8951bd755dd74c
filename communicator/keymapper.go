package communicator

// DataKeyMapper maps items to opaque string keys and back.
//
// A key is stable for an item until the item is removed; removed keys are
// never issued again. Items are matched by identity, not by pointer.
type DataKeyMapper[T any] interface {
	// Key returns the key of item, allocating a new one if needed.
	Key(item T) string
	// Get returns the item registered under key.
	Get(key string) (T, bool)
	// Has reports whether item has a key.
	Has(item T) bool
	// HasKey reports whether key is registered.
	HasKey(key string) bool
	// Remove retires the key of item.
	Remove(item T)
	// RemoveAll retires every key.
	RemoveAll()
	// Refresh replaces the stored item that has the same identity as item.
	Refresh(item T)
}

// KeyMapper is the default DataKeyMapper. It is not safe for concurrent use;
// callers serialize access per session.
type KeyMapper[T any] struct {
	keys      KeyGenerator
	idOf      func(T) any
	keyByID   map[any]string
	itemByKey map[string]T
}

var _ DataKeyMapper[string] = (*KeyMapper[string])(nil)

// NewKeyMapper returns a mapper issuing keys from gen. A nil gen uses
// SequentialKeys. Items are their own identity until SetIdentifierGetter is
// called.
func NewKeyMapper[T any](gen KeyGenerator) *KeyMapper[T] {
	if gen == nil {
		gen = SequentialKeys()
	}
	return &KeyMapper[T]{
		keys:      gen,
		keyByID:   make(map[any]string),
		itemByKey: make(map[string]T),
	}
}

// SetIdentifierGetter sets the identity function. Identities must be
// comparable values.
func (m *KeyMapper[T]) SetIdentifierGetter(idOf func(T) any) {
	m.idOf = idOf
}

func (m *KeyMapper[T]) id(item T) any {
	if m.idOf == nil {
		return item
	}
	return m.idOf(item)
}

// Key implements DataKeyMapper.
func (m *KeyMapper[T]) Key(item T) string {
	id := m.id(item)
	if key, ok := m.keyByID[id]; ok {
		return key
	}
	key := m.keys.NextKey()
	m.keyByID[id] = key
	m.itemByKey[key] = item
	return key
}

// Get implements DataKeyMapper.
func (m *KeyMapper[T]) Get(key string) (T, bool) {
	item, ok := m.itemByKey[key]
	return item, ok
}

// Has implements DataKeyMapper.
func (m *KeyMapper[T]) Has(item T) bool {
	_, ok := m.keyByID[m.id(item)]
	return ok
}

// HasKey implements DataKeyMapper.
func (m *KeyMapper[T]) HasKey(key string) bool {
	_, ok := m.itemByKey[key]
	return ok
}

// Remove implements DataKeyMapper.
func (m *KeyMapper[T]) Remove(item T) {
	id := m.id(item)
	if key, ok := m.keyByID[id]; ok {
		delete(m.keyByID, id)
		delete(m.itemByKey, key)
	}
}

// RemoveAll implements DataKeyMapper.
func (m *KeyMapper[T]) RemoveAll() {
	clear(m.keyByID)
	clear(m.itemByKey)
}

// Refresh implements DataKeyMapper.
func (m *KeyMapper[T]) Refresh(item T) {
	if key, ok := m.keyByID[m.id(item)]; ok {
		m.itemByKey[key] = item
	}
}

// Len returns the number of registered keys.
func (m *KeyMapper[T]) Len() int { return len(m.itemByKey) }
