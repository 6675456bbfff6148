package planner

import (
	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIFFICULTY MIX
// ══════════════════════════════════════════════════════════════════════════════

// DifficultyMix is the target serving distribution over difficulties.
// Ratios sum to 1.
type DifficultyMix struct {
	Easy   float64
	Medium float64
	Hard   float64
}

// MixForMastery maps average focus-skill mastery to a serving mix. The easy
// ratio is non-increasing and the hard ratio non-decreasing in mastery.
func MixForMastery(avgMastery float64) DifficultyMix {
	switch {
	case avgMastery < 0.35:
		return DifficultyMix{Easy: 0.70, Medium: 0.25, Hard: 0.05}
	case avgMastery <= 0.70:
		return DifficultyMix{Easy: 0.30, Medium: 0.50, Hard: 0.20}
	default:
		return DifficultyMix{Easy: 0.10, Medium: 0.45, Hard: 0.45}
	}
}

// Draw samples a difficulty from the mix using the shared seeded RNG, then
// caps the result at ceiling when one is set.
func (m DifficultyMix) Draw(rng *content.SeededRNG, ceiling shared.Difficulty) shared.Difficulty {
	roll := rng.Float64()

	var d shared.Difficulty
	switch {
	case roll < m.Easy:
		d = shared.DifficultyEasy
	case roll < m.Easy+m.Medium:
		d = shared.DifficultyMedium
	default:
		d = shared.DifficultyHard
	}

	return capDifficulty(d, ceiling)
}

// capDifficulty lowers d to ceiling when it would exceed it.
func capDifficulty(d, ceiling shared.Difficulty) shared.Difficulty {
	if !ceiling.IsValid() {
		return d
	}
	if d.Rank() > ceiling.Rank() {
		return ceiling
	}
	return d
}
