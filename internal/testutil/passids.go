package testutil

import (
	"fmt"
	"sync"
)

// CountingGenerator yields prefix-1, prefix-2, ... without limit.
//
// Scenario runs do not know their pass count up front, so unlike
// engine.FixedGenerator this never panics. The same prefix always yields the
// same sequence, which keeps golden traces stable.
type CountingGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingGenerator returns a generator for prefix. An empty prefix
// becomes "pass".
func NewCountingGenerator(prefix string) *CountingGenerator {
	if prefix == "" {
		prefix = "pass"
	}
	return &CountingGenerator{prefix: prefix}
}

// Generate returns the next id. Implements engine.PassIDGenerator.
func (g *CountingGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
