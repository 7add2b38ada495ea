package coerce

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Registry maps (kind name, field name) to the field's declared type.
// It is built once and then only read.
type Registry struct {
	kinds       map[string]map[string]FieldType
	nodeKinds   map[string]bool
	uniqueKinds map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:       make(map[string]map[string]FieldType),
		nodeKinds:   make(map[string]bool),
		uniqueKinds: make(map[string]bool),
	}
}

// DefineKind declares a kind with no fields yet.
func (r *Registry) DefineKind(kind string) {
	if _, ok := r.kinds[kind]; !ok {
		r.kinds[kind] = make(map[string]FieldType)
	}
}

// Define declares one field of a kind.
func (r *Registry) Define(kind, field string, ft FieldType) {
	r.DefineKind(kind)
	r.kinds[kind][field] = ft
}

// MarkNode declares kind as the node kind: its fields belong to nodes and it
// cannot be constructed as a facet.
func (r *Registry) MarkNode(kind string) {
	r.DefineKind(kind)
	r.nodeKinds[kind] = true
}

// IsNode reports whether kind was declared with MarkNode.
func (r *Registry) IsNode(kind string) bool {
	return r.nodeKinds[kind]
}

// MarkUnique declares that a node carries at most one facet of kind.
func (r *Registry) MarkUnique(kind string) {
	r.DefineKind(kind)
	r.uniqueKinds[kind] = true
}

// IsUnique reports whether kind was declared with MarkUnique.
func (r *Registry) IsUnique(kind string) bool {
	return r.uniqueKinds[kind]
}

// HasKind reports whether kind is declared.
func (r *Registry) HasKind(kind string) bool {
	_, ok := r.kinds[kind]
	return ok
}

// Lookup returns the declared type of kind.field. Unknown kinds and fields
// report false; they are never an error.
func (r *Registry) Lookup(kind, field string) (FieldType, bool) {
	fields, ok := r.kinds[kind]
	if !ok {
		return FieldType{}, false
	}
	ft, ok := fields[field]
	return ft, ok
}

// Kinds returns all declared kind names, sorted.
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Fields returns the declared field names of kind, sorted.
func (r *Registry) Fields(kind string) []string {
	names := make([]string, 0, len(r.kinds[kind]))
	for f := range r.kinds[kind] {
		names = append(names, f)
	}
	slices.Sort(names)
	return names
}

// FieldName maps a serialized attribute name to its live field name: a
// leading "m_" is dropped and the first rune is lowercased.
//
//	FieldName("m_LocalPosition") == "localPosition"
//	FieldName("m_Enabled") == "enabled"
func FieldName(attr string) string {
	name := strings.TrimPrefix(attr, "m_")
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}
