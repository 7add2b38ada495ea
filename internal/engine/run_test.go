package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryohey/warp/internal/host"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/scene"
)

func TestQueueFIFO(t *testing.T) {
	q := newRequestQueue()
	for _, src := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(Request{Kind: RequestReload, Source: src}))
	}

	for _, want := range []string{"a", "b", "c"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.Source)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestQueueCoalescesReloadsPerSource(t *testing.T) {
	q := newRequestQueue()
	first := &ir.NodeRecord{StableID: "1"}
	second := &ir.NodeRecord{StableID: "2"}

	q.Enqueue(Request{Kind: RequestReload, Source: "a.prefab", Tree: first})
	q.Enqueue(Request{Kind: RequestReload, Source: "b.prefab"})
	q.Enqueue(Request{Kind: RequestReload, Source: "a.prefab", Tree: second})
	q.Enqueue(Request{Kind: RequestUpdate, Source: "a.prefab"})
	q.Enqueue(Request{Kind: RequestUpdate, Source: "a.prefab"})
	q.Enqueue(Request{Kind: RequestReload, Tree: first})
	q.Enqueue(Request{Kind: RequestReload, Tree: second})

	assert.Equal(t, 6, q.Len(), "updates and unnamed sources never coalesce")
	assert.Equal(t, 1, q.Coalesced())

	r, _ := q.TryDequeue()
	assert.Equal(t, "a.prefab", r.Source)
	assert.Same(t, second, r.Tree, "latest document wins, earliest position kept")
	r, _ = q.TryDequeue()
	assert.Equal(t, "b.prefab", r.Source)
}

func TestQueueClose(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(Request{Kind: RequestReload, Source: "a"})
	q.Enqueue(Request{Kind: RequestReload, Source: "b"})

	assert.Equal(t, 2, q.Close())
	assert.Equal(t, 0, q.Close())
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Request{Kind: RequestReload}))
	assert.Equal(t, 0, q.Len())

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}

func TestRequestKindString(t *testing.T) {
	assert.Equal(t, "reload", RequestReload.String())
	assert.Equal(t, "update", RequestUpdate.String())
	assert.Equal(t, "invalid", RequestKind(0).String())
}

// passCollector gathers pass results from the Run goroutine.
type passCollector struct {
	mu      sync.Mutex
	results []PassResult
	signal  chan struct{}
}

func newPassCollector() *passCollector {
	return &passCollector{signal: make(chan struct{}, 64)}
}

func (c *passCollector) hook(r PassResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *passCollector) wait(t *testing.T, n int) []PassResult {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for pass %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PassResult(nil), c.results...)
}

func TestRunProcessesRequests(t *testing.T) {
	passes := newPassCollector()
	f := newFixture(t, WithPassHook(passes.hook))

	done := make(chan error, 1)
	go func() { done <- f.session.Run(context.Background()) }()

	loads := 0
	require.True(t, f.session.Enqueue(Request{
		Kind:   RequestReload,
		Source: "scene.prefab",
		Load: func(context.Context) (*ir.NodeRecord, error) {
			loads++
			return baseTree(), nil
		},
	}))
	passes.wait(t, 1)

	next := baseTree()
	next.Children = next.Children[:2]
	f.session.Enqueue(Request{Kind: RequestReload, Source: "scene.prefab", Tree: next})
	f.session.Enqueue(Request{Kind: RequestUpdate, Source: "scene.prefab", Tree: next})

	results := passes.wait(t, 2)
	f.session.Close()
	require.NoError(t, <-done)

	require.Len(t, results, 3)
	assert.Equal(t, ir.PassSpawn, results[0].Kind)
	assert.Equal(t, ir.PassReconcile, results[1].Kind)
	assert.Equal(t, 1, results[1].Destroys)
	assert.Equal(t, ir.PassUpdate, results[2].Kind)
	assert.Equal(t, "scene.prefab", results[2].Source)
	assert.Equal(t, 1, loads)

	nodes, _ := f.scene.Counts()
	assert.Equal(t, 3, nodes)
}

func TestRunCoalescesPendingReloads(t *testing.T) {
	passes := newPassCollector()
	f := newFixture(t, WithPassHook(passes.hook))

	next := baseTree()
	next.Children = next.Children[:1]
	f.session.Enqueue(Request{Kind: RequestReload, Source: "scene.prefab", Tree: baseTree()})
	f.session.Enqueue(Request{Kind: RequestReload, Source: "scene.prefab", Tree: next})
	assert.Equal(t, 1, f.session.Pending())

	done := make(chan error, 1)
	go func() { done <- f.session.Run(context.Background()) }()

	results := passes.wait(t, 1)
	f.session.Close()
	require.NoError(t, <-done)

	require.Len(t, results, 1)
	assert.Equal(t, ir.PassSpawn, results[0].Kind)
	assert.Equal(t, 2, results[0].Creates, "only the latest document was applied")
}

func TestRunContinuesAfterFailure(t *testing.T) {
	passes := newPassCollector()
	rec := &memRecorder{}
	f := newFixture(t, WithPassHook(passes.hook), WithRecorder(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.session.Run(ctx) }()

	f.session.Enqueue(Request{
		Kind:   RequestReload,
		Source: "broken.prefab",
		Load: func(context.Context) (*ir.NodeRecord, error) {
			return nil, errors.New("no such file")
		},
	})
	bad := baseTree()
	bad.Facets = append(bad.Facets, facet("900", "NoSuchKind"))
	f.session.Enqueue(Request{Kind: RequestReload, Source: "bad.prefab", Tree: bad})
	f.session.Enqueue(Request{Kind: RequestReload, Source: "good.prefab", Tree: baseTree()})

	results := passes.wait(t, 3)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	require.Len(t, results, 3)
	assert.ErrorContains(t, results[0].Err, "load broken.prefab: no such file")
	assert.True(t, IsUnknownFacetKind(results[1].Err))
	assert.NoError(t, results[2].Err)
	assert.Equal(t, ir.PassReconcile, results[2].Kind, "the failed spawn left the graph non-empty")

	require.Len(t, rec.records, 3)
	assert.Equal(t, ir.PassFailed, rec.records[0].Status)
	assert.Nil(t, rec.trees[0])
	assert.Equal(t, ir.PassOK, rec.records[2].Status)

	assert.False(t, f.session.Enqueue(Request{Kind: RequestReload}), "cancelling Run closes the session")
}

// cancelOnCreate cancels a context the first time a node is created.
type cancelOnCreate struct {
	host.Host
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelOnCreate) CreateNode(parent host.Handle) (host.Handle, error) {
	c.once.Do(c.cancel)
	return c.Host.CreateNode(parent)
}

func TestRunCancelDoesNotInterruptPass(t *testing.T) {
	sc, err := scene.NewDefault()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passes := newPassCollector()
	rec := &memRecorder{}
	s := Open(&cancelOnCreate{Host: sc, cancel: cancel}, WithPassHook(passes.hook), WithRecorder(rec))
	s.Enqueue(Request{Kind: RequestReload, Source: "scene.prefab", Tree: baseTree()})
	s.Enqueue(Request{Kind: RequestReload, Source: "other.prefab", Tree: baseTree()})

	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	results := passes.wait(t, 1)
	require.Len(t, results, 1, "requests queued behind the running pass are dropped")
	require.NoError(t, results[0].Err)
	assert.Equal(t, 5, results[0].Creates)
	assert.Equal(t, 9, results[0].Applied, "4 nodes and 5 facets")

	nodes, facets := sc.Counts()
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 5, facets)
	for _, id := range []string{"100", "101", "102", "103", "502"} {
		_, ok := s.Lookup(id)
		assert.True(t, ok, "id %s not bound", id)
	}

	require.Len(t, rec.records, 1)
	assert.Equal(t, ir.PassOK, rec.records[0].Status)
}
