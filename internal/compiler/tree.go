package compiler

import (
	"fmt"
	"strconv"

	"github.com/ryohey/warp/internal/document"
	"github.com/ryohey/warp/internal/ir"
)

// Default class ids for the two record kinds the tree is built from.
const (
	DefaultNodeKind = 1 // GameObject
	DefaultLinkKind = 4 // Transform
)

// Attribute names that carry tree structure. They are consumed while
// building the tree and do not appear in the output attributes.
const (
	attrOwner      = "m_GameObject"
	attrParent     = "m_Father"
	attrChildren   = "m_Children"
	attrComponents = "m_Component"
	attrComponent  = "component"
)

// TreeOption configures CompileTree.
type TreeOption func(*treeBuilder)

// WithNodeKind sets the class id of node records.
func WithNodeKind(kind int) TreeOption {
	return func(b *treeBuilder) { b.nodeKind = kind }
}

// WithLinkKind sets the class id of link records, the records that carry
// parent and child pointers.
func WithLinkKind(kind int) TreeOption {
	return func(b *treeBuilder) { b.linkKind = kind }
}

type treeBuilder struct {
	nodeKind int
	linkKind int
	index    map[string]*ir.Record
	visiting map[string]bool
	done     map[string]bool
}

// CompileTree assembles flat records into an element tree.
//
// The root is the one link record whose parent reference is absent; zero or
// several such records is ROOT_NOT_FOUND. Each node's facets follow its component list and
// each node's children follow its link's child list. Sentinel references
// become ir.IRNull everywhere in the output.
func CompileTree(records []ir.Record, opts ...TreeOption) (*ir.NodeRecord, error) {
	b := &treeBuilder{
		nodeKind: DefaultNodeKind,
		linkKind: DefaultLinkKind,
		index:    make(map[string]*ir.Record, len(records)),
		visiting: make(map[string]bool),
		done:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}

	for i := range records {
		rec := &records[i]
		if _, dup := b.index[rec.StableID]; dup {
			return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: rec.StableID, Message: "duplicate stable id"}
		}
		b.index[rec.StableID] = rec
	}

	root, err := b.findRoot(records)
	if err != nil {
		return nil, err
	}
	return b.buildFromLink(root)
}

// CompileDocument parses text and assembles its tree.
func CompileDocument(text string, opts ...TreeOption) (*ir.NodeRecord, error) {
	records, err := document.Parse(text)
	if err != nil {
		return nil, err
	}
	return CompileTree(records, opts...)
}

// CompileFile reads, parses, and assembles a document from disk.
func CompileFile(path string, opts ...TreeOption) (*ir.NodeRecord, error) {
	records, err := document.ParseFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := CompileTree(records, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

func (b *treeBuilder) findRoot(records []ir.Record) (*ir.Record, error) {
	var roots []*ir.Record
	for i := range records {
		rec := &records[i]
		if rec.Kind != b.linkKind {
			continue
		}
		if parent, ok := rec.Ref(attrParent); !ok || parent.IsSentinel() {
			roots = append(roots, rec)
		}
	}
	switch len(roots) {
	case 1:
		return roots[0], nil
	case 0:
		return nil, &TreeError{
			Code:    ErrCodeRootNotFound,
			Message: "no record of class " + strconv.Itoa(b.linkKind) + " has an absent parent",
		}
	default:
		return nil, &TreeError{
			Code:     ErrCodeRootNotFound,
			StableID: roots[1].StableID,
			Message:  fmt.Sprintf("%d records of class %d have an absent parent", len(roots), b.linkKind),
		}
	}
}

// resolve looks up a reference. Sentinel references resolve to nil.
func (b *treeBuilder) resolve(ref ir.IRRef, from string) (*ir.Record, error) {
	if ref.IsSentinel() {
		return nil, nil
	}
	rec, ok := b.index[string(ref)]
	if !ok {
		return nil, &TreeError{
			Code:     ErrCodeDanglingReference,
			StableID: string(ref),
			Message:  "reference from " + from + " to a record that does not exist",
		}
	}
	return rec, nil
}

func (b *treeBuilder) buildFromLink(link *ir.Record) (*ir.NodeRecord, error) {
	if link.Kind != b.linkKind {
		return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: link.StableID,
			Message: fmt.Sprintf("expected class %d, got %d", b.linkKind, link.Kind)}
	}
	if b.visiting[link.StableID] || b.done[link.StableID] {
		return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: link.StableID, Message: "link reached twice (cycle or shared child)"}
	}
	b.visiting[link.StableID] = true
	defer func() {
		delete(b.visiting, link.StableID)
		b.done[link.StableID] = true
	}()

	ownerRef, ok := link.Ref(attrOwner)
	if !ok || ownerRef.IsSentinel() {
		return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: link.StableID, Message: "link has no owning node"}
	}
	owner, err := b.resolve(ownerRef, link.StableID)
	if err != nil {
		return nil, err
	}
	if owner.Kind != b.nodeKind {
		return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: owner.StableID,
			Message: fmt.Sprintf("owner of link %s has class %d, expected %d", link.StableID, owner.Kind, b.nodeKind)}
	}

	node := &ir.NodeRecord{
		StableID:   owner.StableID,
		TypeName:   owner.TypeName,
		Attributes: normalizeObject(owner.Attributes.Without(attrComponents, attrOwner)),
		Facets:     []ir.FacetRecord{},
		Children:   []ir.NodeRecord{},
	}

	facets, err := b.buildFacets(owner)
	if err != nil {
		return nil, err
	}
	node.Facets = facets

	children, err := b.childRefs(link)
	if err != nil {
		return nil, err
	}
	for _, ref := range children {
		child, err := b.resolve(ref, link.StableID)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		sub, err := b.buildFromLink(child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, *sub)
	}
	return node, nil
}

func (b *treeBuilder) buildFacets(owner *ir.Record) ([]ir.FacetRecord, error) {
	facets := []ir.FacetRecord{}
	raw, ok := owner.Attributes[attrComponents]
	if !ok {
		return facets, nil
	}
	list, ok := raw.(ir.IRArray)
	if !ok {
		if _, isNull := raw.(ir.IRNull); isNull {
			return facets, nil
		}
		return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: owner.StableID, Message: attrComponents + " is not a list"}
	}

	for i, entry := range list {
		ref, ok := componentRef(entry)
		if !ok {
			return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: owner.StableID,
				Message: fmt.Sprintf("%s[%d] is not a component reference", attrComponents, i)}
		}
		rec, err := b.resolve(ref, owner.StableID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		attrs := rec.Attributes.Without(attrOwner)
		if rec.Kind == b.linkKind {
			attrs = attrs.Without(attrParent, attrChildren)
		}
		facets = append(facets, ir.FacetRecord{
			StableID:   rec.StableID,
			KindName:   rec.TypeName,
			ClassID:    rec.Kind,
			Attributes: normalizeObject(attrs),
		})
	}
	return facets, nil
}

// componentRef accepts both component list shapes: "- component: {fileID: N}"
// and the older class-keyed "- 4: {fileID: N}".
func componentRef(entry ir.IRValue) (ir.IRRef, bool) {
	switch e := entry.(type) {
	case ir.IRRef:
		return e, true
	case ir.IRObject:
		if ref, ok := e[attrComponent].(ir.IRRef); ok {
			return ref, true
		}
		if len(e) == 1 {
			for _, v := range e {
				ref, ok := v.(ir.IRRef)
				return ref, ok
			}
		}
	}
	return "", false
}

func (b *treeBuilder) childRefs(link *ir.Record) ([]ir.IRRef, error) {
	raw, ok := link.Attributes[attrChildren]
	if !ok {
		return nil, nil
	}
	switch list := raw.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		refs := make([]ir.IRRef, 0, len(list))
		for i, v := range list {
			ref, ok := v.(ir.IRRef)
			if !ok {
				return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: link.StableID,
					Message: fmt.Sprintf("%s[%d] is not a reference", attrChildren, i)}
			}
			refs = append(refs, ref)
		}
		return refs, nil
	default:
		return nil, &TreeError{Code: ErrCodeMalformedDocument, StableID: link.StableID, Message: attrChildren + " is not a list"}
	}
}

// normalizeObject rewrites sentinel references to null, recursively.
func normalizeObject(obj ir.IRObject) ir.IRObject {
	out := make(ir.IRObject, len(obj))
	for k, v := range obj {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRRef:
		if val.IsSentinel() {
			return ir.IRNull{}
		}
		return val
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case ir.IRObject:
		return normalizeObject(val)
	default:
		return v
	}
}
