package engine

import (
	"maps"

	"github.com/ryohey/warp/internal/host"
)

// IdentityMap binds declared stable ids to live handles.
//
// Each id maps to at most one handle and vice versa. The map also remembers
// the attribute fingerprint last applied to each handle so unchanged entities
// can be skipped. It never holds an entry for a handle the engine destroyed.
type IdentityMap struct {
	byID         map[string]host.Handle
	byHandle     map[host.Handle]string
	fingerprints map[host.Handle]string
}

// NewIdentityMap returns an empty map.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		byID:         make(map[string]host.Handle),
		byHandle:     make(map[host.Handle]string),
		fingerprints: make(map[host.Handle]string),
	}
}

// Bind maps id to h, dropping any previous binding of either side.
func (m *IdentityMap) Bind(id string, h host.Handle) {
	if old, ok := m.byID[id]; ok && old != h {
		delete(m.byHandle, old)
		delete(m.fingerprints, old)
	}
	if oldID, ok := m.byHandle[h]; ok && oldID != id {
		delete(m.byID, oldID)
	}
	m.byID[id] = h
	m.byHandle[h] = id
}

// Lookup returns the handle bound to id.
func (m *IdentityMap) Lookup(id string) (host.Handle, bool) {
	h, ok := m.byID[id]
	return h, ok
}

// IDOf returns the stable id bound to h.
func (m *IdentityMap) IDOf(h host.Handle) (string, bool) {
	id, ok := m.byHandle[h]
	return id, ok
}

// ForgetHandle removes whatever binding h has.
func (m *IdentityMap) ForgetHandle(h host.Handle) {
	if id, ok := m.byHandle[h]; ok {
		delete(m.byID, id)
		delete(m.byHandle, h)
	}
	delete(m.fingerprints, h)
}

// Fingerprint returns the attribute fingerprint last applied to h.
func (m *IdentityMap) Fingerprint(h host.Handle) (string, bool) {
	fp, ok := m.fingerprints[h]
	return fp, ok
}

// SetFingerprint records the fingerprint applied to h. An empty fingerprint
// clears it, forcing the next pass to re-apply.
func (m *IdentityMap) SetFingerprint(h host.Handle, fp string) {
	if fp == "" {
		delete(m.fingerprints, h)
		return
	}
	m.fingerprints[h] = fp
}

// Len returns the number of bound ids.
func (m *IdentityMap) Len() int {
	return len(m.byID)
}

// IDs returns a copy of the id to handle bindings.
func (m *IdentityMap) IDs() map[string]host.Handle {
	return maps.Clone(m.byID)
}

// Reset drops every binding.
func (m *IdentityMap) Reset() {
	clear(m.byID)
	clear(m.byHandle)
	clear(m.fingerprints)
}
