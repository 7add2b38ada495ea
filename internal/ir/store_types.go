package ir

// PassKind names the three reconciliation entry points.
type PassKind string

const (
	PassSpawn     PassKind = "spawn"
	PassReconcile PassKind = "reconcile"
	PassUpdate    PassKind = "update"
)

// PassStatus is the outcome of a pass as recorded in the pass log.
type PassStatus string

const (
	PassOK     PassStatus = "ok"
	PassFailed PassStatus = "failed"
)

// PassRecord is the durable summary of one reconciliation pass.
// NOTE: store-layer type; Seq is the engine's logical clock, never wall time.
type PassRecord struct {
	ID            string     `json:"id"`
	Seq           int64      `json:"seq"`
	Kind          PassKind   `json:"kind"`
	Source        string     `json:"source"`
	TreeHash      string     `json:"tree_hash"`
	Creates       int        `json:"creates"`
	Destroys      int        `json:"destroys"`
	Applied       int        `json:"applied"`
	Skipped       int        `json:"skipped"`
	AssetFailures int        `json:"asset_failures"`
	Status        PassStatus `json:"status"`
	Error         string     `json:"error,omitempty"`
}
