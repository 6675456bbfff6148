// Package mastery tracks per-(user, skill) mastery estimates, answer streaks,
// and spaced-repetition review scheduling.
package mastery

import (
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILL MASTERY ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// SkillMastery is the per-(user, skill) mastery row. It is created lazily on
// the first answer to a skill, mutated only by answer tracking, and never
// deleted.
type SkillMastery struct {
	// UserID identifies the learner.
	UserID shared.UserID

	// SkillID identifies the skill.
	SkillID shared.SkillID

	// Mastery is the [0,1] confidence estimate that the skill is learned.
	// It is clamped to [0,1] after every update.
	Mastery float64

	// StreakCorrect is the run of consecutive correct answers. Mutually
	// exclusive with StreakWrong: setting one resets the other to zero.
	StreakCorrect int

	// StreakWrong is the run of consecutive wrong answers.
	StreakWrong int

	// LastSeenAt is when the skill was last practiced.
	LastSeenAt time.Time

	// NextReviewAt is the spaced-repetition due time. Nil when spaced
	// repetition is disabled or no review has been scheduled yet.
	NextReviewAt *time.Time

	// CreatedAt is when the row was lazily created.
	CreatedAt time.Time

	// UpdatedAt is when the row was last mutated.
	UpdatedAt time.Time
}

// NewSkillMastery creates a zeroed row for first access.
func NewSkillMastery(user shared.UserID, skill shared.SkillID, now time.Time) *SkillMastery {
	return &SkillMastery{
		UserID:    user,
		SkillID:   skill,
		Mastery:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDueForReview reports whether the skill is due for spaced review at now.
func (m *SkillMastery) IsDueForReview(now time.Time) bool {
	return m.NextReviewAt != nil && !m.NextReviewAt.After(now)
}

// clampMastery keeps the mastery estimate inside [0,1].
func (m *SkillMastery) clampMastery() {
	m.Mastery = shared.Clamp01(m.Mastery)
}
