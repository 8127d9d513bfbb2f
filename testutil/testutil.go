package testutil

import (
	"math/rand"
	"sync"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Bytes returns n random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := make([]byte, n)
	r.rand.Read(buf)
	return buf
}

// Pattern returns n bytes of a deterministic, position-dependent pattern
// starting at byte offset off. Two calls with overlapping ranges agree on
// the overlap, which makes partial-write verification cheap.
func Pattern(n int, off int64) []byte {
	buf := make([]byte, n)
	for i := range buf {
		pos := off + int64(i)
		buf[i] = byte(pos*31 + pos>>8)
	}
	return buf
}
