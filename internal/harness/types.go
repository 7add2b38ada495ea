package harness

// TraceEvent is one pass in a scenario run.
type TraceEvent struct {
	Step          int      `json:"step"`
	ID            string   `json:"id"`
	Seq           int64    `json:"seq"`
	Kind          string   `json:"kind"`
	Source        string   `json:"source"`
	Creates       int      `json:"creates"`
	Destroys      int      `json:"destroys"`
	Applied       int      `json:"applied"`
	Skipped       int      `json:"skipped"`
	AssetFailures int      `json:"asset_failures"`
	ErrorCode     string   `json:"error_code,omitempty"`
	Calls         []string `json:"calls"` // mutating host calls, in order
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per pass, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expect and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Scene is the text dump of the final live graph.
	Scene string `json:"scene"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPassTrace appends a pass to the trace.
func (r *Result) AddPassTrace(ev TraceEvent) {
	if ev.Calls == nil {
		ev.Calls = []string{}
	}
	r.Trace = append(r.Trace, ev)
}
