package scene

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/host"
)

const (
	// DefaultNodeKind is the registry kind that types node fields.
	DefaultNodeKind = "GameObject"

	// DefaultPositionalKind is the facet kind every node is born with.
	DefaultPositionalKind = "Transform"
)

// Option configures a Scene.
type Option func(*Scene)

// WithNodeKind sets the registry kind used for node fields.
func WithNodeKind(kind string) Option {
	return func(s *Scene) { s.nodeKind = kind }
}

// WithPositionalKind sets the facet kind created alongside every node.
func WithPositionalKind(kind string) Option {
	return func(s *Scene) { s.positionalKind = kind }
}

type object struct {
	handle   host.Handle
	kind     string
	parent   host.Handle // parent node, or owning node for facets
	children []host.Handle
	facets   []host.Handle
	fields   map[string]any
}

// Scene is an in-memory live graph. It is safe for concurrent use, though the
// engine only ever drives it from one goroutine.
type Scene struct {
	mu             sync.RWMutex
	reg            *coerce.Registry
	nodeKind       string
	positionalKind string
	next           uint64
	objects        map[host.Handle]*object
	roots          []host.Handle
}

var _ host.Host = (*Scene)(nil)

// New creates an empty scene typed by reg.
func New(reg *coerce.Registry, opts ...Option) *Scene {
	s := &Scene{
		reg:            reg,
		nodeKind:       DefaultNodeKind,
		positionalKind: DefaultPositionalKind,
		objects:        make(map[host.Handle]*object),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDefault creates an empty scene over the built-in registry.
func NewDefault(opts ...Option) (*Scene, error) {
	reg, err := DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("load builtin registry: %w", err)
	}
	return New(reg, opts...), nil
}

// Registry returns the registry the scene is typed by.
func (s *Scene) Registry() *coerce.Registry {
	return s.reg
}

// PositionalKind returns the facet kind every node is born with.
func (s *Scene) PositionalKind() string {
	return s.positionalKind
}

func (s *Scene) alloc(class host.Class, kind string, parent host.Handle) *object {
	s.next++
	obj := &object{
		handle: host.Handle{Class: class, ID: s.next},
		kind:   kind,
		parent: parent,
		fields: make(map[string]any),
	}
	s.objects[obj.handle] = obj
	return obj
}

func (s *Scene) lookup(h host.Handle, class host.Class) (*object, error) {
	obj, ok := s.objects[h]
	if !ok || h.Class != class {
		return nil, fmt.Errorf("%w: %s", host.ErrStaleHandle, h)
	}
	return obj, nil
}

// CreateNode implements host.Host.
func (s *Scene) CreateNode(parent host.Handle) (host.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parentObj *object
	if !parent.IsZero() {
		p, err := s.lookup(parent, host.ClassNode)
		if err != nil {
			return host.Handle{}, err
		}
		parentObj = p
	}

	node := s.alloc(host.ClassNode, s.nodeKind, parent)
	pos := s.alloc(host.ClassFacet, s.positionalKind, node.handle)
	node.facets = append(node.facets, pos.handle)

	if parentObj != nil {
		parentObj.children = append(parentObj.children, node.handle)
	} else {
		s.roots = append(s.roots, node.handle)
	}
	return node.handle, nil
}

// CreateFacet implements host.Host. A second facet of a unique kind, which
// includes the positional kind, constructs nothing.
func (s *Scene) CreateFacet(node host.Handle, kind string) (host.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.lookup(node, host.ClassNode)
	if err != nil {
		return host.Handle{}, err
	}
	if !s.reg.HasKind(kind) || s.reg.IsNode(kind) {
		return host.Handle{}, fmt.Errorf("%w: %s", host.ErrUnknownFacetKind, kind)
	}
	if kind == s.positionalKind || s.reg.IsUnique(kind) {
		for _, fh := range owner.facets {
			if s.objects[fh].kind == kind {
				return host.Handle{}, nil
			}
		}
	}

	facet := s.alloc(host.ClassFacet, kind, node)
	owner.facets = append(owner.facets, facet.handle)
	return facet.handle, nil
}

// PositionalFacet implements host.Host.
func (s *Scene) PositionalFacet(node host.Handle) (host.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, err := s.lookup(node, host.ClassNode)
	if err != nil || len(owner.facets) == 0 {
		return host.Handle{}, false
	}
	return owner.facets[0], true
}

// Destroy implements host.Host.
func (s *Scene) Destroy(h host.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[h]
	if !ok {
		return fmt.Errorf("%w: %s", host.ErrStaleHandle, h)
	}

	if h.Class == host.ClassFacet {
		owner := s.objects[obj.parent]
		if len(owner.facets) > 0 && owner.facets[0] == h {
			return host.ErrBuiltinFacet
		}
		owner.facets = remove(owner.facets, h)
		delete(s.objects, h)
		return nil
	}

	if obj.parent.IsZero() {
		s.roots = remove(s.roots, h)
	} else if parent, ok := s.objects[obj.parent]; ok {
		parent.children = remove(parent.children, h)
	}
	s.release(obj)
	return nil
}

func (s *Scene) release(node *object) {
	for _, ch := range node.children {
		s.release(s.objects[ch])
	}
	for _, fh := range node.facets {
		delete(s.objects, fh)
	}
	delete(s.objects, node.handle)
}

func remove(list []host.Handle, h host.Handle) []host.Handle {
	if i := slices.Index(list, h); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}

// SetField implements host.Host. The value must have the Go type the
// registry declares for the field.
func (s *Scene) SetField(h host.Handle, field string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[h]
	if !ok {
		return false
	}
	ft, ok := s.reg.Lookup(obj.kind, field)
	if !ok || !ft.Accepts(value) {
		return false
	}
	obj.fields[field] = value
	return true
}

// FieldType implements host.Host.
func (s *Scene) FieldType(h host.Handle, field string) (coerce.FieldType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[h]
	if !ok {
		return coerce.FieldType{}, false
	}
	return s.reg.Lookup(obj.kind, field)
}

// Parent implements host.Host.
func (s *Scene) Parent(h host.Handle) (host.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[h]
	if !ok {
		return host.Handle{}, false
	}
	return obj.parent, true
}

// Children implements host.Host.
func (s *Scene) Children(node host.Handle) []host.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(node, host.ClassNode)
	if err != nil {
		return nil
	}
	return slices.Clone(obj.children)
}

// Facets implements host.Host.
func (s *Scene) Facets(node host.Handle) []host.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(node, host.ClassNode)
	if err != nil {
		return nil
	}
	return slices.Clone(obj.facets)
}

// Alive implements host.Host.
func (s *Scene) Alive(h host.Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[h]
	return ok
}

// Kind returns the registry kind of a live object.
func (s *Scene) Kind(h host.Handle) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[h]
	if !ok {
		return "", false
	}
	return obj.kind, true
}

// Field returns the current value of a field, or false when it was never
// assigned.
func (s *Scene) Field(h host.Handle, field string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[h]
	if !ok {
		return nil, false
	}
	v, ok := obj.fields[field]
	return v, ok
}

// Roots returns the scene's root nodes in creation order.
func (s *Scene) Roots() []host.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roots)
}

// Counts returns the number of live nodes and facets.
func (s *Scene) Counts() (nodes, facets int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for h := range s.objects {
		if h.Class == host.ClassNode {
			nodes++
		} else {
			facets++
		}
	}
	return nodes, facets
}
