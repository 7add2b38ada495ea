package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/host"
	"github.com/ryohey/warp/internal/ir"
)

// DefaultPositionalKind is the facet kind that maps onto a node's built-in
// positional facet instead of being constructed.
const DefaultPositionalKind = "Transform"

// PassResult summarizes one pass.
//
// Creates and Destroys count live entities. Applied counts entities whose
// attributes were (re)applied; Skipped and AssetFailures count fields.
type PassResult struct {
	ID            string
	Seq           int64
	Kind          ir.PassKind
	Source        string
	Creates       int
	Destroys      int
	Applied       int
	Skipped       int
	AssetFailures int
	TreeHash      string
	Duration      time.Duration
	Err           error
}

// Record converts the result into its pass log form.
func (r PassResult) Record() ir.PassRecord {
	rec := ir.PassRecord{
		ID:            r.ID,
		Seq:           r.Seq,
		Kind:          r.Kind,
		Source:        r.Source,
		TreeHash:      r.TreeHash,
		Creates:       r.Creates,
		Destroys:      r.Destroys,
		Applied:       r.Applied,
		Skipped:       r.Skipped,
		AssetFailures: r.AssetFailures,
		Status:        ir.PassOK,
	}
	if r.Err != nil {
		rec.Status = ir.PassFailed
		rec.Error = r.Err.Error()
	}
	return rec
}

// PassRecorder persists pass summaries. Implemented by store.Store.
type PassRecorder interface {
	RecordPass(ctx context.Context, rec ir.PassRecord, tree *ir.NodeRecord) error
}

// Option configures a Session.
type Option func(*Session)

// WithAssets sets the resolver used for asset fields. Without one, every
// asset field fails with coerce.ErrAssetNotFound.
func WithAssets(r coerce.AssetResolver) Option {
	return func(s *Session) { s.assets = r }
}

// WithParent materializes the tree under an existing live node instead of
// at scene root.
func WithParent(h host.Handle) Option {
	return func(s *Session) { s.parent = h }
}

// WithPositionalKind sets the facet kind that maps to the built-in
// positional facet.
func WithPositionalKind(kind string) Option {
	return func(s *Session) { s.positionalKind = kind }
}

// WithPassIDs sets the pass id generator.
func WithPassIDs(g PassIDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

// WithClock sets the logical clock that numbers passes.
func WithClock(c *Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithRecorder persists every pass summary.
func WithRecorder(r PassRecorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithPassHook registers a callback invoked on the coordinating goroutine
// after every pass.
func WithPassHook(fn func(PassResult)) Option {
	return func(s *Session) { s.hooks = append(s.hooks, fn) }
}

// Session owns one live graph and keeps it synchronized with declared trees.
//
// Thread-safety model:
//   - Enqueue and Close: safe from any goroutine
//   - Run: called from exactly one goroutine, the coordinating goroutine
//   - Spawn, Reconcile, Update: only from the coordinating goroutine, or
//     when Run is not active
type Session struct {
	host           host.Host
	assets         coerce.AssetResolver
	parent         host.Handle
	positionalKind string
	ids            PassIDGenerator
	clock          *Clock
	recorder       PassRecorder
	hooks          []func(PassResult)

	identity  *IdentityMap
	queue     *requestQueue
	closeOnce sync.Once
}

// Open creates a session over h with an empty live graph.
func Open(h host.Host, opts ...Option) *Session {
	s := &Session{
		host:           h,
		positionalKind: DefaultPositionalKind,
		ids:            UUIDv7Generator{},
		clock:          NewClock(),
		identity:       NewIdentityMap(),
		queue:          newRequestQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity exposes the session's identity map for inspection.
func (s *Session) Identity() *IdentityMap {
	return s.identity
}

// Lookup returns the live handle bound to a stable id.
func (s *Session) Lookup(id string) (host.Handle, bool) {
	return s.identity.Lookup(id)
}

// Spawn materializes tree into an empty live graph and applies every
// attribute.
func (s *Session) Spawn(ctx context.Context, tree *ir.NodeRecord) (PassResult, error) {
	return s.pass(ctx, ir.PassSpawn, "", tree)
}

// Reconcile brings the live graph in line with tree: entities not declared
// are destroyed, missing ones created, and changed attributes re-applied.
func (s *Session) Reconcile(ctx context.Context, tree *ir.NodeRecord) (PassResult, error) {
	return s.pass(ctx, ir.PassReconcile, "", tree)
}

// Update re-applies every attribute of tree to the entities already live,
// without creating or destroying anything.
func (s *Session) Update(ctx context.Context, tree *ir.NodeRecord) (PassResult, error) {
	return s.pass(ctx, ir.PassUpdate, "", tree)
}

// Pass runs a pass of the given kind and tags it with source, the document
// tree came from.
func (s *Session) Pass(ctx context.Context, kind ir.PassKind, source string, tree *ir.NodeRecord) (PassResult, error) {
	return s.pass(ctx, kind, source, tree)
}

func (s *Session) pass(ctx context.Context, kind ir.PassKind, source string, tree *ir.NodeRecord) (PassResult, error) {
	start := time.Now()
	r := PassResult{
		ID:     s.ids.Generate(),
		Seq:    s.clock.Next(),
		Kind:   kind,
		Source: source,
	}

	r.Err = s.runPass(ctx, kind, tree, &r)
	r.Duration = time.Since(start)
	s.finish(context.WithoutCancel(ctx), r, tree)
	return r, r.Err
}

func (s *Session) runPass(ctx context.Context, kind ir.PassKind, tree *ir.NodeRecord, r *PassResult) error {
	if s.queue.Closed() {
		return ErrSessionClosed
	}
	if tree == nil {
		return errors.New("nil tree")
	}
	// A pass either does not start or runs to the end; cancellation is only
	// observed here.
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	hash, err := ir.TreeFingerprint(tree)
	if err != nil {
		return fmt.Errorf("fingerprint tree: %w", err)
	}
	r.TreeHash = hash

	st := &passStats{}
	defer func() {
		r.Creates = st.creates
		r.Destroys = st.destroys
		r.Applied = st.applied
		r.Skipped = st.skipped
		r.AssetFailures = st.assetFailures
	}()

	switch kind {
	case ir.PassSpawn:
		if n := s.identity.Len(); n > 0 {
			return newAlreadySpawned(n)
		}
		if err := s.reconcileNode(ctx, tree, s.parent, st); err != nil {
			return err
		}
		s.applyTree(ctx, tree, true, st)
		return nil
	case ir.PassReconcile:
		if err := s.reconcileNode(ctx, tree, s.parent, st); err != nil {
			return err
		}
		s.applyTree(ctx, tree, false, st)
		return nil
	case ir.PassUpdate:
		s.applyTree(ctx, tree, true, st)
		return nil
	}
	return fmt.Errorf("unknown pass kind %q", kind)
}

func (s *Session) finish(ctx context.Context, r PassResult, tree *ir.NodeRecord) {
	observePass(r)

	if r.Err != nil {
		slog.Error("pass failed",
			"id", r.ID,
			"seq", r.Seq,
			"kind", r.Kind,
			"source", r.Source,
			"creates", r.Creates,
			"destroys", r.Destroys,
			"error", r.Err,
		)
	} else {
		slog.Info("pass complete",
			"id", r.ID,
			"seq", r.Seq,
			"kind", r.Kind,
			"source", r.Source,
			"creates", r.Creates,
			"destroys", r.Destroys,
			"applied", r.Applied,
			"skipped", r.Skipped,
			"asset_failures", r.AssetFailures,
			"duration", r.Duration,
		)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordPass(ctx, r.Record(), tree); err != nil {
			slog.Error("record pass", "id", r.ID, "error", err)
		}
	}
	for _, hook := range s.hooks {
		hook(r)
	}
}

// Enqueue submits a request for the Run loop. Safe from any goroutine.
// Returns false once the session is closed.
func (s *Session) Enqueue(r Request) bool {
	return s.queue.Enqueue(r)
}

// Pending returns the number of queued requests.
func (s *Session) Pending() int {
	return s.queue.Len()
}

// Run is the coordinating loop. It processes queued requests one at a time
// until ctx is cancelled or the session is closed. Cancelling ctx lets the
// pass in progress finish and drops the requests still queued.
//
// A failed request is logged and recorded, and the loop continues with the
// next one.
func (s *Session) Run(ctx context.Context) error {
	slog.Info("session starting")
	// The identity map belongs to this goroutine; it is discarded on exit.
	defer s.identity.Reset()

	for {
		if ctx.Err() != nil {
			return s.stopCancelled(ctx)
		}
		if req, ok := s.queue.TryDequeue(); ok {
			s.process(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			return s.stopCancelled(ctx)
		case <-s.queue.Wait():
			// The signal channel is closed by Close, so an empty queue
			// here means the session is shutting down.
			if s.queue.Closed() && s.queue.Len() == 0 {
				slog.Info("session stopping: closed")
				return nil
			}
		}
	}
}

func (s *Session) stopCancelled(ctx context.Context) error {
	slog.Info("session stopping: context cancelled")
	s.Close()
	return ctx.Err()
}

// process runs one request to completion. Cancelling the Run context does
// not interrupt it.
func (s *Session) process(ctx context.Context, req Request) {
	ctx = context.WithoutCancel(ctx)
	tree := req.Tree
	if tree == nil && req.Load != nil {
		loaded, err := req.Load(ctx)
		if err != nil {
			s.loadFailed(ctx, req, err)
			return
		}
		tree = loaded
	}

	kind := ir.PassReconcile
	switch {
	case req.Kind == RequestUpdate:
		kind = ir.PassUpdate
	case s.identity.Len() == 0:
		kind = ir.PassSpawn
	}
	// The error is already logged and recorded by finish.
	_, _ = s.pass(ctx, kind, req.Source, tree)
}

func (s *Session) loadFailed(ctx context.Context, req Request, err error) {
	r := PassResult{
		ID:     s.ids.Generate(),
		Seq:    s.clock.Next(),
		Kind:   ir.PassReconcile,
		Source: req.Source,
		Err:    fmt.Errorf("load %s: %w", req.Source, err),
	}
	if req.Kind == RequestUpdate {
		r.Kind = ir.PassUpdate
	}
	s.finish(ctx, r, nil)
}

// Close stops the session from accepting requests and makes Run return.
// A pass already in progress runs to completion; queued requests are
// dropped. The live graph is left as is; later passes fail with
// ErrSessionClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if dropped := s.queue.Close(); dropped > 0 {
			slog.Warn("session closed with pending requests", "dropped", dropped)
		}
	})
}
