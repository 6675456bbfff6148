// Package content implements procedural generation of practice-item variants:
// a deterministic seeded RNG, template generator specs, rendering, and
// anti-repeat signatures.
package content

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEEDED RNG
// An explicit linear-congruential generator so that seed→output mapping is
// stable across platforms and releases. The process-global random source is
// never used for content generation.
// ══════════════════════════════════════════════════════════════════════════════

// LCG constants from Knuth's MMIX.
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

// SeededRNG is a deterministic pseudo-random generator. Not safe for
// concurrent use; each generation call owns its instance.
type SeededRNG struct {
	state uint64
}

// NewSeededRNG creates a generator with the given seed.
func NewSeededRNG(seed uint64) *SeededRNG {
	return &SeededRNG{state: seed}
}

// Next advances the generator and returns the top 47 bits of the new state.
func (r *SeededRNG) Next() uint64 {
	r.state = r.state*lcgMultiplier + lcgIncrement
	// The high bits of an LCG have better statistical quality.
	return r.state >> 17
}

// Intn returns a value in [0, n). n must be positive.
func (r *SeededRNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

// Int64Between returns a value in [lo, hi] inclusive. Returns lo when hi <= lo.
func (r *SeededRNG) Int64Between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	span := uint64(hi - lo + 1)
	return lo + int64(r.Next()%span)
}

// Float64 returns a value in [0, 1). Next yields 47 bits, which a float64
// mantissa represents exactly, so the division is lossless.
func (r *SeededRNG) Float64() float64 {
	return float64(r.Next()) / (1 << 47)
}

// Shuffle deterministically permutes n elements using the swap function.
func (r *SeededRNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEED DERIVATION
// ══════════════════════════════════════════════════════════════════════════════

// SeedKey renders the canonical seed string for a generation request.
func SeedKey(user, template, dayBucket string, attemptIndex int) string {
	return fmt.Sprintf("%s|%s|%s|%d", user, template, dayBucket, attemptIndex)
}

// SeedFor hashes a generation request into an RNG seed. Identical inputs
// always produce the identical seed; different attempt indexes produce
// independent candidate streams for the anti-repeat search.
func SeedFor(user, template, dayBucket string, attemptIndex int) uint64 {
	sum := blake2b.Sum256([]byte(SeedKey(user, template, dayBucket, attemptIndex)))
	return binary.BigEndian.Uint64(sum[:8])
}
