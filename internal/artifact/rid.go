package artifact

import (
	"fmt"
	"sync/atomic"
	"time"
)

// RIDGenerator assigns reconciliation identifiers of the form
// RID-<jurisdiction>-<YYYYMMDD>-<6-digit-sequence>. The sequence is monotonic
// per process; every evaluation pass gets a fresh identifier, so a rebuilt
// artifact is always distinguishable from the one it replaces.
type RIDGenerator struct {
	seq atomic.Uint64
}

// NewRIDGenerator returns a generator starting at sequence 1.
func NewRIDGenerator() *RIDGenerator {
	return &RIDGenerator{}
}

// Next issues the next identifier for a jurisdiction and calendar date.
func (g *RIDGenerator) Next(jurisdiction string, date time.Time) string {
	n := g.seq.Add(1)
	return fmt.Sprintf("RID-%s-%s-%06d", jurisdiction, date.Format("20060102"), n)
}
