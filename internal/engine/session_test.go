package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/compiler"
	"github.com/ryohey/warp/internal/host"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/scene"
	"github.com/ryohey/warp/internal/testutil"
)

func vec3(x, y, z string) ir.IRObject {
	return ir.NewIRObjectFromPairs(
		ir.O("x", ir.IRString(x)),
		ir.O("y", ir.IRString(y)),
		ir.O("z", ir.IRString(z)),
	)
}

func facet(id, kind string, pairs ...ir.IRPair) ir.FacetRecord {
	return ir.FacetRecord{StableID: id, KindName: kind, Attributes: ir.NewIRObjectFromPairs(pairs...)}
}

func node(id, name string, facets []ir.FacetRecord, children ...ir.NodeRecord) ir.NodeRecord {
	return ir.NodeRecord{
		StableID:   id,
		TypeName:   "GameObject",
		Attributes: ir.NewIRObjectFromPairs(ir.O("m_Name", ir.IRString(name))),
		Facets:     facets,
		Children:   children,
	}
}

func facets(fs ...ir.FacetRecord) []ir.FacetRecord { return fs }

// baseTree is Root(400) with children A(401), B(402, BoxCollider 502) and
// C(403).
func baseTree() *ir.NodeRecord {
	root := node("100", "Root",
		facets(facet("400", "Transform", ir.O("m_LocalPosition", vec3("1", "2", "3")))),
		node("101", "A", facets(facet("401", "Transform"))),
		node("102", "B", facets(
			facet("402", "Transform"),
			facet("502", "BoxCollider", ir.O("m_IsTrigger", ir.IRString("1"))),
		)),
		node("103", "C", facets(facet("403", "Transform"))),
	)
	return &root
}

type fixture struct {
	session *Session
	scene   *scene.Scene
	host    *testutil.RecordingHost
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	sc, err := scene.NewDefault()
	require.NoError(t, err)
	rec := testutil.NewRecordingHost(sc)
	opts = append([]Option{WithPassIDs(testutil.NewCountingGenerator("p"))}, opts...)
	return &fixture{session: Open(rec, opts...), scene: sc, host: rec}
}

func (f *fixture) handle(t *testing.T, id string) host.Handle {
	t.Helper()
	h, ok := f.session.Lookup(id)
	require.True(t, ok, "id %s not bound", id)
	require.True(t, f.scene.Alive(h), "id %s bound to dead handle", id)
	return h
}

func (f *fixture) field(t *testing.T, id, field string) any {
	t.Helper()
	v, ok := f.scene.Field(f.handle(t, id), field)
	require.True(t, ok, "field %s of %s not set", field, id)
	return v
}

func TestSpawnMaterializesTree(t *testing.T) {
	f := newFixture(t)
	tree := baseTree()

	res, err := f.session.Spawn(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, "p-1", res.ID)
	assert.Equal(t, int64(1), res.Seq)
	assert.Equal(t, ir.PassSpawn, res.Kind)
	assert.Equal(t, ir.MustTreeFingerprint(tree), res.TreeHash)
	assert.Equal(t, 5, res.Creates, "4 nodes and 1 collider")
	assert.Equal(t, 0, res.Destroys)
	assert.Equal(t, 9, res.Applied, "4 nodes and 5 facets")
	assert.Equal(t, 0, res.Skipped)

	nodes, fcts := f.scene.Counts()
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 5, fcts)

	assert.Equal(t, "Root", f.field(t, "100", "name"))
	assert.Equal(t, coerce.Vector3{X: 1, Y: 2, Z: 3}, f.field(t, "400", "localPosition"))
	assert.Equal(t, true, f.field(t, "502", "isTrigger"))

	pos, ok := f.scene.PositionalFacet(f.handle(t, "100"))
	require.True(t, ok)
	assert.Equal(t, pos, f.handle(t, "400"), "link facet binds to the positional facet")

	children := f.scene.Children(f.handle(t, "100"))
	assert.Equal(t, []host.Handle{f.handle(t, "101"), f.handle(t, "102"), f.handle(t, "103")}, children)
}

func TestSpawnTwiceFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)

	res, err := f.session.Spawn(context.Background(), baseTree())
	require.Error(t, err)
	assert.True(t, IsAlreadySpawned(err))
	assert.Equal(t, err, res.Err)
	assert.Equal(t, 0, res.Creates)
}

func TestSpawnUnderParent(t *testing.T) {
	sc, err := scene.NewDefault()
	require.NoError(t, err)
	anchor, err := sc.CreateNode(host.Handle{})
	require.NoError(t, err)

	s := Open(sc, WithParent(anchor), WithPassIDs(testutil.NewCountingGenerator("p")))
	_, err = s.Spawn(context.Background(), baseTree())
	require.NoError(t, err)

	root, ok := s.Lookup("100")
	require.True(t, ok)
	parent, _ := sc.Parent(root)
	assert.Equal(t, anchor, parent)

	// Reconciling again keeps the tree under the anchor.
	res, err := s.Reconcile(context.Background(), baseTree())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Creates)
	assert.Equal(t, 0, res.Destroys)
}

func TestReconcileSameTreeIsStable(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)
	before := f.session.Identity().IDs()
	f.host.Reset()

	res, err := f.session.Reconcile(context.Background(), baseTree())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Creates)
	assert.Equal(t, 0, res.Destroys)
	assert.Equal(t, 0, res.Applied)
	assert.Empty(t, f.host.Calls())
	assert.Equal(t, before, f.session.Identity().IDs())
}

func TestReconcileMinimalChurn(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)
	root, a, b, c := f.handle(t, "100"), f.handle(t, "101"), f.handle(t, "102"), f.handle(t, "103")
	f.host.Reset()

	next := baseTree()
	next.Children = []ir.NodeRecord{next.Children[0], next.Children[2]}
	next.Children[1].Attributes["m_Name"] = ir.IRString("C2")

	res, err := f.session.Reconcile(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Destroys)
	assert.Equal(t, 0, res.Creates)
	assert.Equal(t, 1, res.Applied, "only C changed")

	assert.Equal(t, root, f.handle(t, "100"))
	assert.Equal(t, a, f.handle(t, "101"))
	assert.Equal(t, c, f.handle(t, "103"))
	assert.False(t, f.scene.Alive(b))

	for _, id := range []string{"102", "402", "502"} {
		_, ok := f.session.Lookup(id)
		assert.False(t, ok, "id %s should be purged", id)
	}
	assert.Equal(t, "C2", f.field(t, "103", "name"))
	assert.Equal(t, []string{"destroy node#5", "set_field node#8 name"}, callStrings(f.host))
}

func callStrings(h *testutil.RecordingHost) []string {
	var out []string
	for _, c := range h.Calls() {
		out = append(out, c.String())
	}
	return out
}

func TestReconcileCreatesMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)

	next := baseTree()
	next.Children = append(next.Children, node("104", "D", facets(
		facet("404", "Transform"),
		facet("504", "Rigidbody", ir.O("m_Mass", ir.IRString("2.5"))),
	)))

	res, err := f.session.Reconcile(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Creates, "node and rigidbody")
	assert.Equal(t, 0, res.Destroys)
	assert.Equal(t, 3, res.Applied, "node, transform and rigidbody")
	assert.Equal(t, float32(2.5), f.field(t, "504", "mass"))
	assert.Equal(t, "D", f.field(t, "104", "name"))
}

func TestReconcileDestroysUndeclaredFacet(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)
	collider := f.handle(t, "502")

	next := baseTree()
	next.Children[1].Facets = next.Children[1].Facets[:1]

	res, err := f.session.Reconcile(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Destroys)
	assert.Equal(t, 0, res.Creates)
	assert.False(t, f.scene.Alive(collider))
	_, ok := f.session.Lookup("502")
	assert.False(t, ok)
	assert.Len(t, f.scene.Facets(f.handle(t, "102")), 1)
}

func TestReconcileRebindsRenamedLinkFacet(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)
	pos := f.handle(t, "401")

	next := baseTree()
	next.Children[0].Facets[0].StableID = "499"

	res, err := f.session.Reconcile(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Destroys)
	assert.Equal(t, 0, res.Creates)
	assert.Equal(t, pos, f.handle(t, "499"))
	_, ok := f.session.Lookup("401")
	assert.False(t, ok)
}

func TestReconcileMovedNodeIsRecreated(t *testing.T) {
	f := newFixture(t)
	tree := baseTree()
	tree.Children[0].Children = []ir.NodeRecord{node("110", "X", facets(facet("410", "Transform")))}
	_, err := f.session.Spawn(context.Background(), tree)
	require.NoError(t, err)
	old := f.handle(t, "110")

	next := baseTree()
	next.Children[2].Children = []ir.NodeRecord{node("110", "X", facets(facet("410", "Transform")))}

	res, err := f.session.Reconcile(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Destroys)
	assert.Equal(t, 1, res.Creates)

	moved := f.handle(t, "110")
	assert.NotEqual(t, old, moved)
	parent, _ := f.scene.Parent(moved)
	assert.Equal(t, f.handle(t, "103"), parent)
	assert.Equal(t, "X", f.field(t, "110", "name"), "recreated node gets its attributes")
}

func TestReconcileRecreatesExternallyDestroyedNode(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)
	require.NoError(t, f.scene.Destroy(f.handle(t, "101")))

	res, err := f.session.Reconcile(context.Background(), baseTree())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Creates)
	assert.Equal(t, "A", f.field(t, "101", "name"))
}

func TestReconcileUnknownFacetKind(t *testing.T) {
	f := newFixture(t)
	tree := baseTree()
	tree.Children[0].Facets = append(tree.Children[0].Facets, facet("600", "NoSuchKind"))

	res, err := f.session.Spawn(context.Background(), tree)
	require.Error(t, err)
	assert.True(t, IsUnknownFacetKind(err))
	assert.ErrorIs(t, err, host.ErrUnknownFacetKind)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "600", re.StableID)
	assert.Equal(t, "NoSuchKind", re.Kind)

	// Partial progress is kept: root and A exist, nothing after the failure.
	assert.Equal(t, 2, res.Creates)
	assert.Equal(t, 0, res.Applied)
	_, ok := f.session.Lookup("102")
	assert.False(t, ok)
}

func TestReconcileFacetConstructionFailed(t *testing.T) {
	f := newFixture(t)
	tree := baseTree()
	tree.Children[2].Facets = append(tree.Children[2].Facets,
		facet("601", "Rigidbody"),
		facet("602", "Rigidbody"),
	)

	_, err := f.session.Spawn(context.Background(), tree)
	require.Error(t, err)
	assert.True(t, IsFacetConstructionFailed(err))
	assert.Contains(t, err.Error(), "id=602")
}

func TestUpdateReappliesWithoutStructure(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Spawn(context.Background(), baseTree())
	require.NoError(t, err)

	next := baseTree()
	next.Children = next.Children[:1]
	next.Children[0].Attributes["m_Name"] = ir.IRString("A2")
	next.Children = append(next.Children, node("199", "Ghost", nil))

	res, err := f.session.Update(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, ir.PassUpdate, res.Kind)
	assert.Equal(t, 0, res.Creates)
	assert.Equal(t, 0, res.Destroys)
	assert.Equal(t, 4, res.Applied, "Root, 400, A and 401; the ghost is not live")

	assert.Equal(t, "A2", f.field(t, "101", "name"))
	nodes, _ := f.scene.Counts()
	assert.Equal(t, 4, nodes)
	_, ok := f.session.Lookup("199")
	assert.False(t, ok)
}

func TestApplySkipsBadFields(t *testing.T) {
	f := newFixture(t)
	tree := baseTree()
	tree.Attributes["m_Layer"] = ir.IRString("not-a-number")
	tree.Attributes["m_NoSuchField"] = ir.IRString("x")
	tree.Attributes["m_IsActive"] = ir.IRString("1")

	res, err := f.session.Spawn(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, true, f.field(t, "100", "isActive"))
	_, ok := f.scene.Field(f.handle(t, "100"), "layer")
	assert.False(t, ok)
}

func meshRef(guid string) ir.IRObject {
	return ir.NewIRObjectFromPairs(
		ir.O("fileID", ir.IRString("4300000")),
		ir.O("guid", ir.IRString(guid)),
		ir.O("type", ir.IRString("3")),
	)
}

func TestApplyAssetFailureRetriesNextPass(t *testing.T) {
	assets := testutil.NewMapResolver()
	f := newFixture(t, WithAssets(assets))

	tree := baseTree()
	tree.Children[0].Facets = append(tree.Children[0].Facets,
		facet("700", "MeshFilter", ir.O("m_Mesh", meshRef("abc"))))

	res, err := f.session.Spawn(context.Background(), tree)
	require.NoError(t, err, "asset failures do not fail the pass")
	assert.Equal(t, 1, res.AssetFailures)
	_, ok := f.scene.Field(f.handle(t, "700"), "mesh")
	assert.False(t, ok)

	// Unchanged attributes, but the failed entity is retried.
	res, err = f.session.Reconcile(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.AssetFailures)

	assets.Add("abc")
	res, err = f.session.Reconcile(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, res.AssetFailures)
	assert.Equal(t, coerce.Asset{ID: "abc", Kind: "Mesh"}, f.field(t, "700", "mesh"))

	res, err = f.session.Reconcile(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
}

func TestApplyAssetArrayIsAtomic(t *testing.T) {
	assets := testutil.NewMapResolver("m1")
	f := newFixture(t, WithAssets(assets))

	tree := baseTree()
	tree.Children[0].Facets = append(tree.Children[0].Facets,
		facet("701", "MeshRenderer", ir.O("m_Materials", ir.IRArray{meshRef("m1"), meshRef("m2")})))

	res, err := f.session.Spawn(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AssetFailures)
	_, ok := f.scene.Field(f.handle(t, "701"), "materials")
	assert.False(t, ok, "nothing assigned when one element fails")
}

func TestEnabledScenario(t *testing.T) {
	const doc = `%YAML 1.1
--- !u!1 &1
GameObject:
  m_Component:
  - component: {fileID: 4}
--- !u!4 &4
Transform:
  m_GameObject: {fileID: 1}
  m_Children:
  - {fileID: 5}
  m_Father: {fileID: 0}
--- !u!1 &2
GameObject:
  m_Component:
  - component: {fileID: 5}
  - component: {fileID: 6}
--- !u!4 &5
Transform:
  m_GameObject: {fileID: 2}
  m_Children: []
  m_Father: {fileID: 4}
--- !u!114 &6
Behaviour:
  m_GameObject: {fileID: 2}
  m_Enabled: 1
`
	tree, err := compiler.CompileDocument(doc)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	child := tree.Children[0]
	require.Len(t, child.Facets, 2)
	assert.Equal(t, ir.IRString("1"), child.Facets[1].Attributes["m_Enabled"])

	f := newFixture(t)
	_, err = f.session.Spawn(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, true, f.field(t, "6", "enabled"))
}

type memRecorder struct {
	records []ir.PassRecord
	trees   []*ir.NodeRecord
	err     error
}

func (m *memRecorder) RecordPass(_ context.Context, rec ir.PassRecord, tree *ir.NodeRecord) error {
	m.records = append(m.records, rec)
	m.trees = append(m.trees, tree)
	return m.err
}

func TestRecorderAndHooks(t *testing.T) {
	rec := &memRecorder{}
	var seen []PassResult
	f := newFixture(t, WithRecorder(rec), WithPassHook(func(r PassResult) { seen = append(seen, r) }), WithClock(NewClockAt(10)))

	tree := baseTree()
	_, err := f.session.Spawn(context.Background(), tree)
	require.NoError(t, err)
	_, err = f.session.Spawn(context.Background(), tree)
	require.Error(t, err)

	require.Len(t, rec.records, 2)
	assert.Equal(t, ir.PassRecord{
		ID:       "p-1",
		Seq:      11,
		Kind:     ir.PassSpawn,
		TreeHash: ir.MustTreeFingerprint(tree),
		Creates:  5,
		Applied:  9,
		Status:   ir.PassOK,
	}, rec.records[0])
	assert.Same(t, tree, rec.trees[0])

	assert.Equal(t, ir.PassFailed, rec.records[1].Status)
	assert.Contains(t, rec.records[1].Error, "ALREADY_SPAWNED")
	assert.Equal(t, int64(12), rec.records[1].Seq)

	require.Len(t, seen, 2)
	assert.NoError(t, seen[0].Err)
	assert.Error(t, seen[1].Err)
}

func TestRecorderFailureDoesNotFailPass(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	f := newFixture(t, WithRecorder(rec))
	_, err := f.session.Spawn(context.Background(), baseTree())
	assert.NoError(t, err)
	assert.Len(t, rec.records, 1)
}

func TestNilTree(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Reconcile(context.Background(), nil)
	assert.Error(t, err)
}

func TestCancelledContextRefusesPass(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.session.Spawn(ctx, baseTree())
	assert.ErrorIs(t, err, context.Canceled)
	nodes, _ := f.scene.Counts()
	assert.Equal(t, 0, nodes)
}

func TestClosedSessionRejectsPasses(t *testing.T) {
	f := newFixture(t)
	f.session.Close()
	f.session.Close()

	_, err := f.session.Spawn(context.Background(), baseTree())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.False(t, f.session.Enqueue(Request{Kind: RequestReload, Tree: baseTree()}))
}

func TestPositionalKindOption(t *testing.T) {
	reg := coerce.NewRegistry()
	reg.MarkNode("Entity")
	reg.Define("Spatial", "x", coerce.FieldType{Kind: coerce.TypeFloat})
	sc := scene.New(reg, scene.WithNodeKind("Entity"), scene.WithPositionalKind("Spatial"))

	s := Open(sc, WithPositionalKind("Spatial"), WithPassIDs(testutil.NewCountingGenerator("p")))
	root := ir.NodeRecord{
		StableID: "1",
		TypeName: "Entity",
		Facets:   []ir.FacetRecord{facet("2", "Spatial", ir.O("x", ir.IRString("1.5")))},
	}
	res, err := s.Spawn(context.Background(), &root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Creates)

	h, ok := s.Lookup("2")
	require.True(t, ok)
	v, _ := sc.Field(h, "x")
	assert.Equal(t, float32(1.5), v)
}

func TestPassTagsSource(t *testing.T) {
	rec := &memRecorder{}
	f := newFixture(t, WithRecorder(rec))

	res, err := f.session.Pass(context.Background(), ir.PassSpawn, "Cube.prefab", baseTree())
	require.NoError(t, err)
	assert.Equal(t, "Cube.prefab", res.Source)
	assert.Equal(t, ir.PassSpawn, res.Kind)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "Cube.prefab", rec.records[0].Source)
}
