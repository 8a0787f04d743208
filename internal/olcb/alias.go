package olcb

import "sync"

// AliasMap tracks the bidirectional binding between 48-bit node ids and
// their 12-bit CAN aliases. Lookups that miss return zero; frames built
// from a zero alias are still well formed on the wire.
type AliasMap struct {
	mu      sync.RWMutex
	byID    map[NodeID]Alias
	byAlias map[Alias]NodeID
}

func NewAliasMap() *AliasMap {
	return &AliasMap{
		byID:    make(map[NodeID]Alias),
		byAlias: make(map[Alias]NodeID),
	}
}

// Add binds a node id to an alias, replacing any prior binding of either.
func (m *AliasMap) Add(id NodeID, a Alias) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byID[id]; ok {
		delete(m.byAlias, old)
	}
	if old, ok := m.byAlias[a]; ok {
		delete(m.byID, old)
	}
	m.byID[id] = a
	m.byAlias[a] = id
}

// Remove drops the binding for an alias, if any.
func (m *AliasMap) Remove(a Alias) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byAlias[a]; ok {
		delete(m.byID, id)
		delete(m.byAlias, a)
	}
}

// AliasFor returns the alias bound to the node id, or zero when unknown.
func (m *AliasMap) AliasFor(id NodeID) Alias {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// NodeFor returns the node id bound to the alias, or zero when unknown.
func (m *AliasMap) NodeFor(a Alias) NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byAlias[a]
}

// Len reports the number of bindings.
func (m *AliasMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
