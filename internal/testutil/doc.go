// Package testutil provides deterministic collaborators for tests: a host
// that records every call, an in-memory asset resolver, and a pass id
// generator that never runs out.
package testutil
