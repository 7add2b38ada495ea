package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ryohey/warp/internal/coerce"
)

// MapResolver is an in-memory coerce.AssetResolver keyed by asset id.
// Lookups are counted so tests can assert on asset traffic.
type MapResolver struct {
	mu     sync.Mutex
	assets map[string]coerce.Asset
	calls  int
}

// NewMapResolver creates a resolver that knows the given ids. Each asset's
// kind is filled in from the lookup.
func NewMapResolver(ids ...string) *MapResolver {
	r := &MapResolver{assets: make(map[string]coerce.Asset)}
	for _, id := range ids {
		r.assets[id] = coerce.Asset{ID: id}
	}
	return r
}

// Add makes id resolvable.
func (r *MapResolver) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[id] = coerce.Asset{ID: id}
}

// Resolve implements coerce.AssetResolver.
func (r *MapResolver) Resolve(_ context.Context, id, kind string) (coerce.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	a, ok := r.assets[id]
	if !ok {
		return coerce.Asset{}, fmt.Errorf("%w: %s", coerce.ErrAssetNotFound, id)
	}
	a.Kind = kind
	return a, nil
}

// Calls returns the number of Resolve calls so far.
func (r *MapResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
