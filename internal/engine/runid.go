package engine

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// RunIDGenerator produces the id attached to every log line of one query run.
// Implemented by UUIDv7Generator (production), SequenceGenerator and
// FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so runs sort by
// start time in aggregated logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator numbers runs prefix-1, prefix-2, and so on.
// Safe for concurrent use.
type SequenceGenerator struct {
	prefix string
	seq    atomic.Int64
}

// NewSequenceGenerator creates a generator whose first id is prefix-1.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id in sequence.
func (g *SequenceGenerator) Generate() string {
	return g.prefix + "-" + strconv.FormatInt(g.seq.Add(1), 10)
}

// FixedGenerator returns predetermined run ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("run-a", "run-b")
//	gen.Generate() // "run-a"
//	gen.Generate() // "run-b"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which means a test ran more queries
// than it planned for.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
