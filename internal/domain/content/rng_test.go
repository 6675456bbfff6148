package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededRNG_Deterministic(t *testing.T) {
	a := NewSeededRNG(42)
	b := NewSeededRNG(42)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestSeededRNG_DifferentSeedsDiverge(t *testing.T) {
	a := NewSeededRNG(1)
	b := NewSeededRNG(2)

	same := 0
	for i := 0; i < 50; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	assert.Less(t, same, 3)
}

func TestSeededRNG_IntnBounds(t *testing.T) {
	rng := NewSeededRNG(7)
	for i := 0; i < 1000; i++ {
		v := rng.Intn(10)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
	}
	assert.Zero(t, rng.Intn(0))
}

func TestSeededRNG_Int64Between(t *testing.T) {
	rng := NewSeededRNG(99)
	hits := make(map[int64]bool)
	for i := 0; i < 500; i++ {
		v := rng.Int64Between(3, 7)
		assert.GreaterOrEqual(t, v, int64(3))
		assert.LessOrEqual(t, v, int64(7))
		hits[v] = true
	}
	// Inclusive bounds must both be reachable.
	assert.True(t, hits[3])
	assert.True(t, hits[7])

	assert.Equal(t, int64(5), rng.Int64Between(5, 5))
	assert.Equal(t, int64(5), rng.Int64Between(5, 2))
}

func TestSeededRNG_Float64CoversUnitInterval(t *testing.T) {
	rng := NewSeededRNG(7)

	max := 0.0
	for i := 0; i < 2000; i++ {
		v := rng.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
		if v > max {
			max = v
		}
	}
	// Draws must span the interval, not cluster near zero. 2000 draws
	// staying under 0.9 would put the scaling off by a power of two.
	assert.Greater(t, max, 0.9)
}

func TestSeededRNG_ShuffleDeterministic(t *testing.T) {
	build := func(seed uint64) []int {
		rng := NewSeededRNG(seed)
		s := []int{0, 1, 2, 3, 4, 5, 6, 7}
		rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		return s
	}

	assert.Equal(t, build(123), build(123))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, build(123))
}

func TestSeedFor_StableAndAttemptSensitive(t *testing.T) {
	s1 := SeedFor("user-1", "tpl-1", "2026-03-02", 0)
	s2 := SeedFor("user-1", "tpl-1", "2026-03-02", 0)
	s3 := SeedFor("user-1", "tpl-1", "2026-03-02", 1)
	s4 := SeedFor("user-2", "tpl-1", "2026-03-02", 0)

	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, s3)
	assert.NotEqual(t, s1, s4)
}
