// Package host defines the live graph capability set the reconciliation
// engine drives. The engine never assumes a concrete object model; anything
// that can create, destroy, and assign fields on nodes and facets can host a
// scene.
package host

import (
	"errors"
	"fmt"

	"github.com/ryohey/warp/internal/coerce"
)

// Class distinguishes the two kinds of live handle.
type Class uint8

const (
	ClassNode Class = iota + 1
	ClassFacet
)

func (c Class) String() string {
	switch c {
	case ClassNode:
		return "node"
	case ClassFacet:
		return "facet"
	}
	return "invalid"
}

// Handle is an opaque reference to a live node or facet. The zero Handle
// refers to nothing; as a parent it means "scene root".
type Handle struct {
	Class Class
	ID    uint64
}

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s#%d", h.Class, h.ID)
}

var (
	// ErrUnknownFacetKind is returned by CreateFacet when the host has no
	// constructible type for the kind name.
	ErrUnknownFacetKind = errors.New("unknown facet kind")

	// ErrStaleHandle is returned when a handle no longer refers to a live
	// object.
	ErrStaleHandle = errors.New("stale handle")

	// ErrBuiltinFacet is returned when destroying a node's positional facet,
	// which lives and dies with its node.
	ErrBuiltinFacet = errors.New("positional facet cannot be destroyed")
)

// Host is the live graph collaborator. Implementations need not be safe for
// concurrent use; the engine calls them from one goroutine.
type Host interface {
	// CreateNode creates a node under parent, or at scene root when parent
	// is zero. Every node is born with its positional facet.
	CreateNode(parent Handle) (Handle, error)

	// CreateFacet constructs a facet of the named kind on node. It fails with
	// ErrUnknownFacetKind when no such kind exists and returns a zero Handle
	// with a nil error when the kind exists but construction produced nothing.
	CreateFacet(node Handle, kind string) (Handle, error)

	// PositionalFacet returns the node's built-in positional facet.
	PositionalFacet(node Handle) (Handle, bool)

	// Destroy detaches and releases a node (with its facets and descendants)
	// or a single facet.
	Destroy(h Handle) error

	// SetField assigns value to the named field and reports whether the
	// field exists and accepted the value.
	SetField(h Handle, field string, value any) bool

	// FieldType returns the declared type of the named field.
	FieldType(h Handle, field string) (coerce.FieldType, bool)

	// Parent returns a node's parent node (zero at scene root) or a facet's
	// owning node.
	Parent(h Handle) (Handle, bool)

	// Children returns a node's child nodes in creation order.
	Children(node Handle) []Handle

	// Facets returns a node's facets in creation order, positional first.
	Facets(node Handle) []Handle

	// Alive reports whether h refers to a live object.
	Alive(h Handle) bool
}
