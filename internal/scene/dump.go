package scene

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/host"
)

// NodeView is a point-in-time copy of a live node and its subtree.
type NodeView struct {
	Handle   string         `json:"handle"`
	Kind     string         `json:"kind"`
	Fields   map[string]any `json:"fields"`
	Facets   []FacetView    `json:"facets"`
	Children []NodeView     `json:"children"`
}

// FacetView is a point-in-time copy of a live facet.
type FacetView struct {
	Handle string         `json:"handle"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// Snapshot copies every root subtree.
func (s *Scene) Snapshot() []NodeView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]NodeView, 0, len(s.roots))
	for _, h := range s.roots {
		views = append(views, s.view(s.objects[h]))
	}
	return views
}

func (s *Scene) view(node *object) NodeView {
	v := NodeView{
		Handle:   node.handle.String(),
		Kind:     node.kind,
		Fields:   maps.Clone(node.fields),
		Facets:   make([]FacetView, 0, len(node.facets)),
		Children: make([]NodeView, 0, len(node.children)),
	}
	for _, fh := range node.facets {
		f := s.objects[fh]
		v.Facets = append(v.Facets, FacetView{Handle: fh.String(), Kind: f.kind, Fields: maps.Clone(f.fields)})
	}
	for _, ch := range node.children {
		v.Children = append(v.Children, s.view(s.objects[ch]))
	}
	return v
}

// Dump writes an indented text rendering of the scene to w.
//
//	node#1 GameObject name="Root"
//	  facet#2 Transform localPosition=(0, 0, 0)
func (s *Scene) Dump(w io.Writer) error {
	for _, root := range s.Snapshot() {
		if err := dumpNode(w, root, 0); err != nil {
			return err
		}
	}
	return nil
}

func dumpNode(w io.Writer, n NodeView, depth int) error {
	indent := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%s%s %s%s\n", indent, n.Handle, n.Kind, formatFields(n.Fields)); err != nil {
		return err
	}
	for _, f := range n.Facets {
		if _, err := fmt.Fprintf(w, "%s  %s %s%s\n", indent, f.Handle, f.Kind, formatFields(f.Fields)); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := dumpNode(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func formatFields(fields map[string]any) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(FormatValue(fields[k]))
	}
	return b.String()
}

// FormatValue renders a live field value compactly.
func FormatValue(v any) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case coerce.Vector2:
		return fmt.Sprintf("(%g, %g)", v.X, v.Y)
	case coerce.Vector2Int:
		return fmt.Sprintf("(%d, %d)", v.X, v.Y)
	case coerce.Vector3:
		return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
	case coerce.Vector3Int:
		return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
	case coerce.Vector4:
		return fmt.Sprintf("(%g, %g, %g, %g)", v.X, v.Y, v.Z, v.W)
	case coerce.Quaternion:
		return fmt.Sprintf("(%g, %g, %g, %g)", v.X, v.Y, v.Z, v.W)
	case coerce.Color:
		return fmt.Sprintf("rgba(%g, %g, %g, %g)", v.R, v.G, v.B, v.A)
	case coerce.EnumValue:
		if v.Name != "" {
			return v.Type + "." + v.Name
		}
		return fmt.Sprintf("%s(%d)", v.Type, v.Value)
	case coerce.Asset:
		return v.Kind + ":" + v.ID
	case []coerce.Asset:
		parts := make([]string, len(v))
		for i, a := range v {
			parts[i] = a.Kind + ":" + a.ID
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

// FindByName returns the first node, depth first, whose name field is name.
func (s *Scene) FindByName(name string) (host.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found host.Handle
	var walk func(h host.Handle) bool
	walk = func(h host.Handle) bool {
		obj := s.objects[h]
		if v, ok := obj.fields["name"].(string); ok && v == name {
			found = h
			return true
		}
		for _, ch := range obj.children {
			if walk(ch) {
				return true
			}
		}
		return false
	}
	for _, r := range s.roots {
		if walk(r) {
			return found, true
		}
	}
	return host.Handle{}, false
}
