package ir

// Record is one top-level entry of a scene document: a class id, a stable
// id unique within the document, the record's type name, and its attributes.
type Record struct {
	Kind       int      `json:"kind"`
	StableID   string   `json:"id"`
	TypeName   string   `json:"type"`
	Attributes IRObject `json:"attributes"`

	// Order lists attribute keys in the order they were declared.
	// Attribute order carries no meaning; it is kept for diagnostics.
	Order []string `json:"-"`

	// Line is the 1-based line of the record header in the source text.
	Line int `json:"-"`
}

// Ref returns the named attribute as a reference. The second result is false
// when the attribute is missing or is not a reference.
func (r *Record) Ref(key string) (IRRef, bool) {
	ref, ok := r.Attributes[key].(IRRef)
	return ref, ok
}

// NodeRecord is a resolved scene-tree node. Its facets appear in the order
// the document declared them, and so do its children.
type NodeRecord struct {
	StableID   string        `json:"id"`
	TypeName   string        `json:"type"`
	Attributes IRObject      `json:"attributes"`
	Facets     []FacetRecord `json:"facets"`
	Children   []NodeRecord  `json:"children"`
}

// FacetRecord is a resolved facet (component) attached to a node.
type FacetRecord struct {
	StableID   string   `json:"id"`
	KindName   string   `json:"kind"`
	ClassID    int      `json:"class_id"`
	Attributes IRObject `json:"attributes"`
}

// Walk visits n and its descendants depth-first in declaration order.
// Returning false from fn stops descent into that node's children.
func (n *NodeRecord) Walk(fn func(node *NodeRecord, depth int) bool) {
	n.walk(fn, 0)
}

func (n *NodeRecord) walk(fn func(*NodeRecord, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for i := range n.Children {
		n.Children[i].walk(fn, depth+1)
	}
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *NodeRecord) CountNodes() int {
	count := 0
	n.Walk(func(*NodeRecord, int) bool {
		count++
		return true
	})
	return count
}

// CountFacets returns the number of facets in the subtree rooted at n.
func (n *NodeRecord) CountFacets() int {
	count := 0
	n.Walk(func(node *NodeRecord, _ int) bool {
		count += len(node.Facets)
		return true
	})
	return count
}

// FindNode returns the node with the given stable id, or nil.
func (n *NodeRecord) FindNode(id string) *NodeRecord {
	var found *NodeRecord
	n.Walk(func(node *NodeRecord, _ int) bool {
		if found != nil {
			return false
		}
		if node.StableID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// FindFacet returns the facet with the given stable id and its owning node.
func (n *NodeRecord) FindFacet(id string) (*FacetRecord, *NodeRecord) {
	var (
		facet *FacetRecord
		owner *NodeRecord
	)
	n.Walk(func(node *NodeRecord, _ int) bool {
		if facet != nil {
			return false
		}
		for i := range node.Facets {
			if node.Facets[i].StableID == id {
				facet, owner = &node.Facets[i], node
				return false
			}
		}
		return true
	})
	return facet, owner
}
