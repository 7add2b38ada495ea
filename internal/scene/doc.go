// Package scene provides an in-memory live graph that implements host.Host.
//
// A Scene is the reference host for the reconciliation engine: nodes carry a
// built-in positional facet, facets are typed by a field registry, and every
// field assignment is checked against the registered type. The CLI uses it to
// materialize trees, and tests use it to observe what a pass did.
package scene
