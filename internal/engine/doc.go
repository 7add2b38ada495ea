// Package engine implements the hot-reload reconciliation engine.
//
// A Session owns one live graph behind a host.Host and keeps it in line with
// a sequence of declared trees. Each tree is applied as one pass:
//
//  1. Structure: nodes and facets are matched to declared entities by stable
//     id. Undeclared entities are destroyed before missing ones are created,
//     so identity survives every pass that does not remove an entity.
//  2. Attributes: each declared attribute map is coerced field by field into
//     the host's typed fields. An entity whose attribute fingerprint has not
//     changed since its last successful apply is skipped.
//
// Single-writer loop:
// The live graph is only touched from one goroutine. Watchers and pollers
// call Enqueue from their own goroutines; Run dequeues requests one at a time
// and runs each to completion. A failed pass is logged and recorded, and the
// loop moves on.
//
// Passes are numbered by a logical Clock and identified by UUIDv7 ids, and
// each summary can be persisted through a PassRecorder.
package engine
