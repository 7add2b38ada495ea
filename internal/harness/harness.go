package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ryohey/warp/internal/engine"
	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/scene"
	"github.com/ryohey/warp/internal/store"
	"github.com/ryohey/warp/internal/testutil"
	"github.com/ryohey/warp/internal/watch"
)

// Harness holds the live state of one scenario run.
type Harness struct {
	host    *testutil.RecordingHost
	session *engine.Session
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh scene and a fresh in-memory pass log.
// Pass ids are prefixed with the scenario name and sequence numbers start
// at 1, so the trace is identical across runs.
//
// Execution flow:
// 1. Create the scene, the recording host, and the in-memory store
// 2. Apply each step as one pass and check its expect clause
// 3. Evaluate assertions against the final scene and pass log
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sc, err := scene.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to create scene: %w", err)
	}
	rec := testutil.NewRecordingHost(sc)

	h := &Harness{
		host: rec,
		session: engine.Open(rec,
			engine.WithAssets(testutil.NewMapResolver(scenario.Assets...)),
			engine.WithRecorder(st),
			engine.WithPassIDs(testutil.NewCountingGenerator(scenario.Name)),
		),
	}
	defer h.session.Close()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, scenario, i, step, result); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{
		Scene: sc,
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	var dump strings.Builder
	if err := sc.Dump(&dump); err != nil {
		return nil, fmt.Errorf("failed to dump scene: %w", err)
	}
	result.Scene = dump.String()
	return result, nil
}

// executeStep applies one document and records its pass.
//
// Load failures abort the run since they mean the scenario itself is
// broken. Pass failures are part of the trace and are checked against the
// expect clause.
func (h *Harness) executeStep(ctx context.Context, scenario *Scenario, index int, step Step, result *Result) error {
	tree, err := loadDocument(scenario.DocumentPath(step))
	if err != nil {
		return fmt.Errorf("step %d: %w", index, err)
	}

	kind := ir.PassReconcile
	switch {
	case step.Action == ActionUpdate:
		kind = ir.PassUpdate
	case h.session.Identity().Len() == 0:
		kind = ir.PassSpawn
	}

	h.host.Reset()
	r, passErr := h.session.Pass(ctx, kind, step.Document, tree)

	calls := h.host.Calls()
	ev := TraceEvent{
		Step:          index,
		ID:            r.ID,
		Seq:           r.Seq,
		Kind:          string(r.Kind),
		Source:        r.Source,
		Creates:       r.Creates,
		Destroys:      r.Destroys,
		Applied:       r.Applied,
		Skipped:       r.Skipped,
		AssetFailures: r.AssetFailures,
		ErrorCode:     errorCode(passErr),
		Calls:         make([]string, len(calls)),
	}
	for i, c := range calls {
		ev.Calls[i] = c.String()
	}
	result.AddPassTrace(ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(index, step.Expect, ev) {
			result.AddError(msg)
		}
	} else if passErr != nil {
		result.AddError(fmt.Sprintf("step %d: pass failed: %v", index, passErr))
	}
	return nil
}

func loadDocument(path string) (*ir.NodeRecord, error) {
	tree, err := watch.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return tree, nil
}

// errorCode names a pass failure for the trace. Runtime errors carry their
// code; anything else is ERROR.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var rerr *engine.RuntimeError
	if errors.As(err, &rerr) {
		return string(rerr.Code)
	}
	return "ERROR"
}

// checkExpect compares a pass against the fields its expect clause sets.
func checkExpect(index int, want *ExpectClause, got TraceEvent) []string {
	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("step %d: expected %s %v, got %v", index, field, want, got))
	}

	if want.Kind != "" && want.Kind != got.Kind {
		mismatch("kind", want.Kind, got.Kind)
	}
	counts := []struct {
		name string
		want *int
		got  int
	}{
		{"creates", want.Creates, got.Creates},
		{"destroys", want.Destroys, got.Destroys},
		{"applied", want.Applied, got.Applied},
		{"skipped", want.Skipped, got.Skipped},
		{"asset_failures", want.AssetFailures, got.AssetFailures},
	}
	for _, c := range counts {
		if c.want != nil && *c.want != c.got {
			mismatch(c.name, *c.want, c.got)
		}
	}
	if want.Error != got.ErrorCode {
		if want.Error == "" {
			errs = append(errs, fmt.Sprintf("step %d: expected success, got error %s", index, got.ErrorCode))
		} else {
			mismatch("error", want.Error, orNone(got.ErrorCode))
		}
	}
	return errs
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
