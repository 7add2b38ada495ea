package scene

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/host"
)

func newScene(t *testing.T) *Scene {
	t.Helper()
	s, err := NewDefault()
	require.NoError(t, err)
	return s
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	assert.True(t, reg.IsNode("GameObject"))
	assert.True(t, reg.IsUnique("Transform"))
	assert.False(t, reg.IsUnique("BoxCollider"))

	ft, ok := reg.Lookup("Transform", "localPosition")
	require.True(t, ok)
	assert.Equal(t, coerce.TypeVector3, ft.Kind)

	ft, ok = reg.Lookup("MeshRenderer", "materials")
	require.True(t, ok)
	assert.Equal(t, coerce.TypeAssetArray, ft.Kind)
	assert.Equal(t, "Material", ft.AssetKind)

	ft, ok = reg.Lookup("Light", "type")
	require.True(t, ok)
	require.NotNil(t, ft.Enum)
	assert.Equal(t, int64(1), ft.Enum.Values["Directional"])

	again, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Same(t, reg, again)
}

func TestCreateNodeHasPositionalFacet(t *testing.T) {
	s := newScene(t)

	root, err := s.CreateNode(host.Handle{})
	require.NoError(t, err)
	assert.Equal(t, host.ClassNode, root.Class)

	pos, ok := s.PositionalFacet(root)
	require.True(t, ok)
	kind, _ := s.Kind(pos)
	assert.Equal(t, "Transform", kind)
	assert.Equal(t, []host.Handle{pos}, s.Facets(root))

	owner, ok := s.Parent(pos)
	require.True(t, ok)
	assert.Equal(t, root, owner)

	parent, ok := s.Parent(root)
	require.True(t, ok)
	assert.True(t, parent.IsZero())
	assert.Equal(t, []host.Handle{root}, s.Roots())
}

func TestCreateNodeUnderStaleParent(t *testing.T) {
	s := newScene(t)
	_, err := s.CreateNode(host.Handle{Class: host.ClassNode, ID: 99})
	assert.ErrorIs(t, err, host.ErrStaleHandle)
}

func TestCreateFacet(t *testing.T) {
	s := newScene(t)
	node, err := s.CreateNode(host.Handle{})
	require.NoError(t, err)

	collider, err := s.CreateFacet(node, "BoxCollider")
	require.NoError(t, err)
	assert.False(t, collider.IsZero())

	second, err := s.CreateFacet(node, "BoxCollider")
	require.NoError(t, err)
	assert.False(t, second.IsZero(), "non-unique kinds may repeat")

	_, err = s.CreateFacet(node, "NoSuchKind")
	assert.ErrorIs(t, err, host.ErrUnknownFacetKind)

	_, err = s.CreateFacet(node, "GameObject")
	assert.ErrorIs(t, err, host.ErrUnknownFacetKind)

	_, err = s.CreateFacet(collider, "BoxCollider")
	assert.ErrorIs(t, err, host.ErrStaleHandle)
}

func TestCreateFacetUniqueConstructsNothing(t *testing.T) {
	s := newScene(t)
	node, err := s.CreateNode(host.Handle{})
	require.NoError(t, err)

	h, err := s.CreateFacet(node, "Transform")
	require.NoError(t, err)
	assert.True(t, h.IsZero())

	body, err := s.CreateFacet(node, "Rigidbody")
	require.NoError(t, err)
	require.False(t, body.IsZero())

	h, err = s.CreateFacet(node, "Rigidbody")
	require.NoError(t, err)
	assert.True(t, h.IsZero())

	require.NoError(t, s.Destroy(body))
	h, err = s.CreateFacet(node, "Rigidbody")
	require.NoError(t, err)
	assert.False(t, h.IsZero())
}

func TestDestroyNodeReleasesSubtree(t *testing.T) {
	s := newScene(t)
	root, _ := s.CreateNode(host.Handle{})
	child, _ := s.CreateNode(root)
	grandchild, _ := s.CreateNode(child)
	light, err := s.CreateFacet(grandchild, "Light")
	require.NoError(t, err)

	nodes, facets := s.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 4, facets)

	require.NoError(t, s.Destroy(child))
	assert.False(t, s.Alive(child))
	assert.False(t, s.Alive(grandchild))
	assert.False(t, s.Alive(light))
	assert.True(t, s.Alive(root))
	assert.Empty(t, s.Children(root))

	nodes, facets = s.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 1, facets)

	err = s.Destroy(child)
	assert.ErrorIs(t, err, host.ErrStaleHandle)
}

func TestDestroyRoot(t *testing.T) {
	s := newScene(t)
	a, _ := s.CreateNode(host.Handle{})
	b, _ := s.CreateNode(host.Handle{})

	require.NoError(t, s.Destroy(a))
	assert.Equal(t, []host.Handle{b}, s.Roots())
}

func TestDestroyFacet(t *testing.T) {
	s := newScene(t)
	node, _ := s.CreateNode(host.Handle{})
	pos, _ := s.PositionalFacet(node)
	collider, _ := s.CreateFacet(node, "BoxCollider")

	err := s.Destroy(pos)
	assert.True(t, errors.Is(err, host.ErrBuiltinFacet))
	assert.True(t, s.Alive(pos))

	require.NoError(t, s.Destroy(collider))
	assert.Equal(t, []host.Handle{pos}, s.Facets(node))
}

func TestSetField(t *testing.T) {
	s := newScene(t)
	node, _ := s.CreateNode(host.Handle{})
	pos, _ := s.PositionalFacet(node)

	assert.True(t, s.SetField(node, "name", "Root"))
	assert.True(t, s.SetField(pos, "localPosition", coerce.Vector3{X: 1, Y: 2, Z: 3}))

	assert.False(t, s.SetField(node, "name", int32(4)), "wrong Go type")
	assert.False(t, s.SetField(node, "noSuchField", "x"))
	assert.False(t, s.SetField(host.Handle{Class: host.ClassNode, ID: 77}, "name", "x"))

	v, ok := s.Field(node, "name")
	require.True(t, ok)
	assert.Equal(t, "Root", v)

	_, ok = s.Field(node, "layer")
	assert.False(t, ok)

	ft, ok := s.FieldType(pos, "localRotation")
	require.True(t, ok)
	assert.Equal(t, coerce.TypeQuaternion, ft.Kind)

	found, ok := s.FindByName("Root")
	require.True(t, ok)
	assert.Equal(t, node, found)
}

func TestCustomKinds(t *testing.T) {
	reg := coerce.NewRegistry()
	reg.MarkNode("Entity")
	reg.Define("Entity", "label", coerce.FieldType{Kind: coerce.TypeString})
	reg.DefineKind("Spatial")

	s := New(reg, WithNodeKind("Entity"), WithPositionalKind("Spatial"))
	assert.Equal(t, "Spatial", s.PositionalKind())
	assert.Same(t, reg, s.Registry())

	node, err := s.CreateNode(host.Handle{})
	require.NoError(t, err)
	pos, ok := s.PositionalFacet(node)
	require.True(t, ok)
	kind, _ := s.Kind(pos)
	assert.Equal(t, "Spatial", kind)
	assert.True(t, s.SetField(node, "label", "e1"))

	h, err := s.CreateFacet(node, "Spatial")
	require.NoError(t, err)
	assert.True(t, h.IsZero())
}

func TestDump(t *testing.T) {
	s := newScene(t)
	root, _ := s.CreateNode(host.Handle{})
	s.SetField(root, "name", "Root")
	child, _ := s.CreateNode(root)
	s.SetField(child, "name", "Cube")
	pos, _ := s.PositionalFacet(child)
	s.SetField(pos, "localScale", coerce.Vector3{X: 1, Y: 1, Z: 1})
	r, _ := s.CreateFacet(child, "MeshRenderer")
	s.SetField(r, "enabled", true)
	s.SetField(r, "materials", []coerce.Asset{{ID: "abc", Kind: "Material"}})

	var buf bytes.Buffer
	require.NoError(t, s.Dump(&buf))

	want := `node#1 GameObject name="Root"
  facet#2 Transform
  node#3 GameObject name="Cube"
    facet#4 Transform localScale=(1, 1, 1)
    facet#5 MeshRenderer enabled=true materials=[Material:abc]
`
	assert.Equal(t, want, buf.String())

	views := s.Snapshot()
	require.Len(t, views, 1)
	require.Len(t, views[0].Children, 1)
	assert.Equal(t, "Cube", views[0].Children[0].Fields["name"])
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"x", `"x"`},
		{true, "true"},
		{int32(-3), "-3"},
		{float32(0.5), "0.5"},
		{coerce.Vector2{X: 1, Y: 2}, "(1, 2)"},
		{coerce.Vector3Int{X: 1, Y: 2, Z: 3}, "(1, 2, 3)"},
		{coerce.Quaternion{W: 1}, "(0, 0, 0, 1)"},
		{coerce.Color{R: 1, A: 1}, "rgba(1, 0, 0, 1)"},
		{coerce.EnumValue{Type: "LightType", Name: "Point", Value: 2}, "LightType.Point"},
		{coerce.EnumValue{Type: "LightType", Value: 9}, "LightType(9)"},
		{coerce.Asset{ID: "g", Kind: "Mesh"}, "Mesh:g"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}
