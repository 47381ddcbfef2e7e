package engine

import "github.com/viktorlott/enum-shape/syntax"

// PolyMap maps pattern type variables (and synthetic impl ids) to the
// concrete field types they were unified with. Keys and values keep their
// insertion order.
type PolyMap struct {
	keys  []syntax.UniqueID
	sets  map[syntax.UniqueID]*idSet
	types map[syntax.UniqueID]*syntax.Type
}

type idSet struct {
	order []syntax.UniqueID
	seen  map[syntax.UniqueID]bool
}

// NewPolyMap returns an empty map.
func NewPolyMap() *PolyMap {
	return &PolyMap{
		sets:  make(map[syntax.UniqueID]*idSet),
		types: make(map[syntax.UniqueID]*syntax.Type),
	}
}

// Insert binds key to the concrete type ty. The first *syntax.Type seen for
// a given id is the one whose position later diagnostics point at.
func (m *PolyMap) Insert(key syntax.UniqueID, ty *syntax.Type) {
	id := ty.ID()
	if _, ok := m.types[id]; !ok {
		m.types[id] = ty
	}
	set, ok := m.sets[key]
	if !ok {
		set = &idSet{seen: make(map[syntax.UniqueID]bool)}
		m.sets[key] = set
		m.keys = append(m.keys, key)
	}
	if !set.seen[id] {
		set.seen[id] = true
		set.order = append(set.order, id)
	}
}

// Get returns the ids bound to key in insertion order.
func (m *PolyMap) Get(key syntax.UniqueID) []syntax.UniqueID {
	if set, ok := m.sets[key]; ok {
		return set.order
	}
	return nil
}

// Contains reports whether value is bound to key.
func (m *PolyMap) Contains(key, value syntax.UniqueID) bool {
	set, ok := m.sets[key]
	return ok && set.seen[value]
}

// Type returns the first type recorded for id.
func (m *PolyMap) Type(id syntax.UniqueID) *syntax.Type { return m.types[id] }

// Keys returns every key in insertion order.
func (m *PolyMap) Keys() []syntax.UniqueID { return m.keys }

// Len returns the number of keys.
func (m *PolyMap) Len() int { return len(m.keys) }
