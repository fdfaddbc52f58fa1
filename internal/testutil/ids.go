package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator hands out UUID-shaped instance ids in a fixed order,
// so golden snapshots that include OmInstance ids stay stable.
//
// Thread-safety: safe for concurrent use.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. The prefix fills the first
// UUID group; an empty prefix uses "00000000".
//
// The first call to Generate() returns "<prefix>-0000-4000-8000-000000000001".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "00000000"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-0000-4000-8000-%012d", g.prefix, g.n)
}
