package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates predictable identifiers: prefix-1, prefix-2, ...
//
// Unlike ritual.FixedGenerator, which panics once its list is consumed,
// SequenceGenerator never runs out. The same scenario with a fresh
// SequenceGenerator produces byte-identical records.
//
// Thread-safety: SequenceGenerator is safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "test".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
