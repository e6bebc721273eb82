package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is a goroutine-safe wrapper over a seeded PCG generator.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a reproducible source from a fixed seed.
func New(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeSeeded builds a source seeded from the wall clock.
func NewTimeSeeded() *Source {
	return New(uint64(time.Now().UnixNano()))
}

// Shuffle pseudo-randomizes the order of n elements.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}
