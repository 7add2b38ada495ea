// Package harness runs reconciliation scenarios against a live session.
//
// A scenario feeds a sequence of scene documents through one session, checks
// each pass against an expect clause, and asserts on the final live graph
// and the pass log.
//
// # Scenario Format
//
// Scenarios are YAML files. Document paths are relative to the scenario.
//
//	name: lamp_edit
//	description: "Editing a lamp adds a collider and then removes the lamp"
//	assets: [5f1c2d3e4a5b6c7d8e9f0a1b2c3d4e5f]
//	steps:
//	  - document: documents/lamp_a.prefab
//	    expect: { kind: spawn, creates: 3 }
//	  - document: documents/lamp_b.prefab
//	    expect: { kind: reconcile, creates: 1, destroys: 0 }
//	  - document: documents/root_only.prefab
//	    expect: { destroys: 1 }
//	  - document: documents/root_only.prefab
//	    action: update
//	assertions:
//	  - type: node_count
//	    count: 1
//	  - type: field
//	    node: Root
//	    field: name
//	    equals: Root
//	  - type: absent
//	    node: Lamp
//	  - type: pass_count
//	    status: failed
//	    count: 0
//
// # Assertion Types
//
//   - node_count: number of live nodes
//   - facet_count: number of live facets, positional facets included
//   - field: a live field of a named node (or one of its facets) renders as
//     equals
//   - absent: a named node, or a facet kind on it, is not live
//   - pass_count: number of logged passes matching status and kind
//
// # Deterministic Runs
//
// Every run uses a fresh in-memory scene, an in-memory SQLite pass log,
// pass ids of the form <name>-<n> and a logical clock starting at zero, so
// the pass trace of a scenario is stable and can be compared against a
// golden file.
package harness
