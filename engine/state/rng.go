package state

import "math/rand/v2"

// RNG is the world's random source. It is seeded so that runs can be
// replayed, and counts its draws so a position can be restored.
type RNG struct {
	seed uint64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewPCG(seed, seed)),
	}
}

// IntN returns a random integer in [0, n). n must be positive.
func (r *RNG) IntN(n int) int {
	r.pos++
	return r.src.IntN(n)
}

// Between returns a random integer in [lo, hi]. The bounds may come in
// either order.
func (r *RNG) Between(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.IntN(hi-lo+1)
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() uint64 { return r.seed }

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}

// RestoreRNG creates an RNG and advances it to the given position.
func RestoreRNG(seed uint64, position int64) *RNG {
	rng := NewRNG(seed)
	for i := int64(0); i < position; i++ {
		rng.src.Uint64()
	}
	rng.pos = position
	return rng
}
