package sequence

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces sequence ids. Ids only label log lines and
// snapshots; nothing depends on their format.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids. It is the default.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids, for deterministic tests and
// golden files. Once the list is exhausted it keeps returning the last id.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedGenerator("seq-1", "seq-2")
//	gen.Generate() // "seq-1"
//	gen.Generate() // "seq-2"
//	gen.Generate() // "seq-2"
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"sequence-fixed"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
