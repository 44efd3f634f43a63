package numerator

import (
	"context"
	"sync"
	"time"
)

// MemoryGenerator keeps sequences in process memory.
// Used by the memory storage driver and unit tests.
type MemoryGenerator struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{seqs: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (g *MemoryGenerator) GetNextNumber(_ context.Context, tenantID string, cfg Config, _ *Options, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := tenantID + ":" + SequenceKey(cfg, period)
	g.seqs[key]++
	return Format(cfg, period, g.seqs[key]), nil
}

// SetNextNumber implements Generator.
func (g *MemoryGenerator) SetNextNumber(_ context.Context, tenantID string, cfg Config, period time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seqs[tenantID+":"+SequenceKey(cfg, period)] = value
	return nil
}

var _ Generator = (*MemoryGenerator)(nil)
