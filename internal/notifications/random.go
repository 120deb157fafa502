package notifications

import (
	"math/rand/v2"
	"sync"
)

// Rand is a mutex-guarded random source shared by the selector, segmenter,
// viewer counts and session ids. Seed it in tests for repeatable draws.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand wraps src. A nil src seeds a PCG generator from the runtime source.
func NewRand(src rand.Source) *Rand {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Rand{r: rand.New(src)}
}

// NewSeededRand returns a deterministic generator.
func NewSeededRand(seed uint64) *Rand {
	return NewRand(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// IntN returns a value in [0, n).
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}
