package testutil

import (
	"fmt"
	"sync"

	"github.com/ryohey/warp/internal/host"
)

// Call is one mutating call observed by RecordingHost.
type Call struct {
	Op     string // create_node, create_facet, destroy, set_field
	Handle host.Handle
	Kind   string
	Field  string
}

func (c Call) String() string {
	switch c.Op {
	case "create_facet":
		return fmt.Sprintf("%s %s %s", c.Op, c.Handle, c.Kind)
	case "set_field":
		return fmt.Sprintf("%s %s %s", c.Op, c.Handle, c.Field)
	}
	return fmt.Sprintf("%s %s", c.Op, c.Handle)
}

// RecordingHost wraps a host.Host and records every mutating call. Queries
// pass through unrecorded.
type RecordingHost struct {
	host.Host

	mu    sync.Mutex
	calls []Call
}

// NewRecordingHost wraps h.
func NewRecordingHost(h host.Host) *RecordingHost {
	return &RecordingHost{Host: h}
}

func (r *RecordingHost) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// CreateNode records and forwards.
func (r *RecordingHost) CreateNode(parent host.Handle) (host.Handle, error) {
	h, err := r.Host.CreateNode(parent)
	if err == nil {
		r.record(Call{Op: "create_node", Handle: h})
	}
	return h, err
}

// CreateFacet records and forwards.
func (r *RecordingHost) CreateFacet(node host.Handle, kind string) (host.Handle, error) {
	h, err := r.Host.CreateFacet(node, kind)
	if err == nil && !h.IsZero() {
		r.record(Call{Op: "create_facet", Handle: h, Kind: kind})
	}
	return h, err
}

// Destroy records and forwards.
func (r *RecordingHost) Destroy(h host.Handle) error {
	err := r.Host.Destroy(h)
	if err == nil {
		r.record(Call{Op: "destroy", Handle: h})
	}
	return err
}

// SetField records and forwards.
func (r *RecordingHost) SetField(h host.Handle, field string, value any) bool {
	ok := r.Host.SetField(h, field, value)
	if ok {
		r.record(Call{Op: "set_field", Handle: h, Field: field})
	}
	return ok
}

// Calls returns a copy of the recorded calls.
func (r *RecordingHost) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many recorded calls have op.
func (r *RecordingHost) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset clears the recorded calls.
func (r *RecordingHost) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
