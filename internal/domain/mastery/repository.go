package mastery

import (
	"context"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for mastery rows.
type Repository interface {
	// GetOrCreate returns the (user, skill) row, lazily creating a zeroed
	// row on first access. Never returns ErrNotFound for a valid key.
	GetOrCreate(ctx context.Context, user shared.UserID, skill shared.SkillID) (*SkillMastery, error)

	// GetForUser returns every mastery row the user has touched.
	GetForUser(ctx context.Context, user shared.UserID) ([]*SkillMastery, error)

	// GetForSkills returns the rows for the given skills, keyed by skill.
	// Skills without a row are absent from the result (zero mastery).
	GetForSkills(ctx context.Context, user shared.UserID, skills []shared.SkillID) (map[shared.SkillID]*SkillMastery, error)

	// Mutate applies fn to the (user, skill) row under a per-row atomic
	// read-modify-write, creating the row first if needed. Concurrent
	// submissions for the same key must not lose updates.
	Mutate(ctx context.Context, user shared.UserID, skill shared.SkillID, fn func(row *SkillMastery) error) (*SkillMastery, error)

	// FindDueForReview returns the user's skills whose NextReviewAt is at or
	// before now.
	FindDueForReview(ctx context.Context, user shared.UserID, now time.Time) ([]shared.SkillID, error)
}
