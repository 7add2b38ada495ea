package asset

import (
	"slices"

	"github.com/ryohey/warp/internal/ir"
)

// Reference is one asset identifier found in a tree.
type Reference struct {
	ID       string
	StableID string // entity that holds the reference
	Attr     string // attribute name, e.g. "m_Mesh"
}

// CollectIDs returns the sorted, de-duplicated identifiers referenced by
// every node and facet of tree.
func CollectIDs(tree *ir.NodeRecord) []string {
	var ids []string
	for _, ref := range CollectRefs(tree) {
		ids = append(ids, ref.ID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// CollectRefs returns every asset reference in tree in declaration order.
// An attribute references an asset when its value, or an element of its
// array value, is a mapping with a non-empty "guid".
func CollectRefs(tree *ir.NodeRecord) []Reference {
	if tree == nil {
		return nil
	}
	var refs []Reference
	tree.Walk(func(n *ir.NodeRecord, _ int) bool {
		refs = appendRefs(refs, n.StableID, n.Attributes)
		for i := range n.Facets {
			refs = appendRefs(refs, n.Facets[i].StableID, n.Facets[i].Attributes)
		}
		return true
	})
	return refs
}

func appendRefs(refs []Reference, owner string, attrs ir.IRObject) []Reference {
	for _, key := range attrs.SortedKeys() {
		switch v := attrs[key].(type) {
		case ir.IRObject:
			if id, ok := guidOf(v); ok {
				refs = append(refs, Reference{ID: id, StableID: owner, Attr: key})
			}
		case ir.IRArray:
			for _, elem := range v {
				if obj, ok := elem.(ir.IRObject); ok {
					if id, ok := guidOf(obj); ok {
						refs = append(refs, Reference{ID: id, StableID: owner, Attr: key})
					}
				}
			}
		}
	}
	return refs
}

func guidOf(obj ir.IRObject) (string, bool) {
	guid, ok := obj["guid"].(ir.IRString)
	if !ok || guid == "" {
		return "", false
	}
	return string(guid), true
}
