package ir

import "slices"

// ChangeOp classifies one entry of a tree diff.
type ChangeOp string

const (
	ChangeCreate  ChangeOp = "create"
	ChangeDestroy ChangeOp = "destroy"
	ChangeUpdate  ChangeOp = "update"
)

// EntityKind distinguishes nodes from facets in a Change.
type EntityKind string

const (
	EntityNode  EntityKind = "node"
	EntityFacet EntityKind = "facet"
)

// Change is one difference between two element trees, keyed by stable id.
type Change struct {
	Op       ChangeOp   `json:"op"`
	Entity   EntityKind `json:"entity"`
	StableID string     `json:"id"`
	Name     string     `json:"name"`
	Parent   string     `json:"parent,omitempty"`
	Fields   []string   `json:"fields,omitempty"`
}

type diffEntry struct {
	entity EntityKind
	name   string
	parent string
	attrs  IRObject
}

// DiffTrees reports what a reconciliation from old to next would touch.
// Creates and updates come in the declaration order of next; destroys come
// in the declaration order of old. An entity whose parent changed is reported
// as a destroy followed by a create. A nil old means everything is created.
func DiffTrees(old, next *NodeRecord) []Change {
	before := indexTree(old)
	after := indexTree(next)

	var changes []Change
	eachEntity(next, func(id string, e diffEntry) {
		prev, ok := before[id]
		switch {
		case !ok:
			changes = append(changes, Change{Op: ChangeCreate, Entity: e.entity, StableID: id, Name: e.name, Parent: e.parent})
		case prev.entity != e.entity || prev.parent != e.parent || prev.name != e.name:
			changes = append(changes,
				Change{Op: ChangeDestroy, Entity: prev.entity, StableID: id, Name: prev.name, Parent: prev.parent},
				Change{Op: ChangeCreate, Entity: e.entity, StableID: id, Name: e.name, Parent: e.parent})
		default:
			if fields := changedKeys(prev.attrs, e.attrs); len(fields) > 0 {
				changes = append(changes, Change{Op: ChangeUpdate, Entity: e.entity, StableID: id, Name: e.name, Fields: fields})
			}
		}
	})
	eachEntity(old, func(id string, e diffEntry) {
		if _, ok := after[id]; !ok {
			changes = append(changes, Change{Op: ChangeDestroy, Entity: e.entity, StableID: id, Name: e.name, Parent: e.parent})
		}
	})
	return changes
}

func indexTree(root *NodeRecord) map[string]diffEntry {
	index := make(map[string]diffEntry)
	eachEntity(root, func(id string, e diffEntry) {
		index[id] = e
	})
	return index
}

func eachEntity(root *NodeRecord, fn func(string, diffEntry)) {
	if root == nil {
		return
	}
	var visit func(n *NodeRecord, parent string)
	visit = func(n *NodeRecord, parent string) {
		fn(n.StableID, diffEntry{entity: EntityNode, name: n.TypeName, parent: parent, attrs: n.Attributes})
		for _, f := range n.Facets {
			fn(f.StableID, diffEntry{entity: EntityFacet, name: f.KindName, parent: n.StableID, attrs: f.Attributes})
		}
		for i := range n.Children {
			visit(&n.Children[i], n.StableID)
		}
	}
	visit(root, "")
}

// changedKeys lists keys added, removed, or whose canonical encoding differs.
func changedKeys(a, b IRObject) []string {
	var keys []string
	for k, bv := range b {
		av, ok := a[k]
		if !ok || !sameValue(av, bv) {
			keys = append(keys, k)
		}
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func sameValue(a, b IRValue) bool {
	ab, aerr := MarshalCanonical(a)
	bb, berr := MarshalCanonical(b)
	return aerr == nil && berr == nil && string(ab) == string(bb)
}
