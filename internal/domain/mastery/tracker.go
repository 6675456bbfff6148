package mastery

import (
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER TRACKER
// Pure transition function over a SkillMastery row. The surrounding store is
// responsible for applying it under a per-(user, skill) atomic
// read-modify-write; the tracker itself holds no mutable state.
// ══════════════════════════════════════════════════════════════════════════════

// TrackerConfig tunes the mastery transition.
type TrackerConfig struct {
	// CorrectDelta is the base mastery gain on a correct answer.
	CorrectDelta float64

	// WrongDelta is the base mastery loss on a wrong answer.
	WrongDelta float64

	// SpacedRepetition enables review scheduling. When disabled the tracker
	// clears NextReviewAt on every update.
	SpacedRepetition bool

	// ReviewIntervals are the spacing steps selected by mastery bucket
	// (<0.3, <=0.6, <=0.8, >0.8), evaluated against the post-update mastery.
	ReviewIntervals [4]time.Duration
}

// DefaultTrackerConfig returns the production tuning.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		CorrectDelta:     0.06,
		WrongDelta:       0.08,
		SpacedRepetition: true,
		ReviewIntervals: [4]time.Duration{
			24 * time.Hour,
			3 * 24 * time.Hour,
			7 * 24 * time.Hour,
			14 * 24 * time.Hour,
		},
	}
}

// Level is the coarse mastery bucket shown to learners and parents. The
// bounds match the review-interval buckets.
type Level string

const (
	LevelNovice     Level = "novice"
	LevelApprentice Level = "apprentice"
	LevelProficient Level = "proficient"
	LevelExpert     Level = "expert"
)

// LevelFor maps a mastery estimate to its level.
func LevelFor(mastery float64) Level {
	switch reviewBucket(mastery) {
	case 0:
		return LevelNovice
	case 1:
		return LevelApprentice
	case 2:
		return LevelProficient
	default:
		return LevelExpert
	}
}

// Outcome is the result of applying one answer to a mastery row, handed to
// gamification/streak/mission collaborators.
type Outcome struct {
	// UserID and SkillID identify the updated row.
	UserID  string
	SkillID string

	// MasteryAfter is the clamped post-update mastery.
	MasteryAfter float64

	// Delta is the applied mastery change, reported for telemetry.
	Delta float64

	// StreakCorrect and StreakWrong are the post-update streak counters.
	StreakCorrect int
	StreakWrong   int

	// Level and PreviousLevel expose mastery-bucket crossings so callers can
	// announce level shifts.
	Level         Level
	PreviousLevel Level

	// NextReviewAt is the scheduled review time, nil when none.
	NextReviewAt *time.Time
}

// LevelShifted reports whether this answer moved the skill across a bucket
// bound, in either direction.
func (o Outcome) LevelShifted() bool {
	return o.Level != o.PreviousLevel
}

// Tracker applies answer events to mastery rows.
type Tracker struct {
	cfg TrackerConfig
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.CorrectDelta == 0 && cfg.WrongDelta == 0 {
		cfg = DefaultTrackerConfig()
	}
	return &Tracker{cfg: cfg}
}

// Apply mutates row in place according to one answer and returns the outcome.
// SKIPPED answers only refresh LastSeenAt; mastery and streaks are untouched.
func (t *Tracker) Apply(row *SkillMastery, difficulty shared.Difficulty, result shared.AnswerResult, now time.Time) Outcome {
	before := row.Mastery

	switch result {
	case shared.ResultCorrect:
		row.Mastery += t.cfg.CorrectDelta * difficulty.Factor()
		row.StreakCorrect++
		row.StreakWrong = 0
	case shared.ResultWrong:
		row.Mastery -= t.cfg.WrongDelta * difficulty.Factor()
		row.StreakWrong++
		row.StreakCorrect = 0
	case shared.ResultSkipped:
		// No mastery or streak change.
	}

	row.clampMastery()
	row.LastSeenAt = now
	row.UpdatedAt = now

	t.scheduleReview(row, result, now)

	return Outcome{
		UserID:        string(row.UserID),
		SkillID:       string(row.SkillID),
		MasteryAfter:  row.Mastery,
		Delta:         row.Mastery - before,
		StreakCorrect: row.StreakCorrect,
		StreakWrong:   row.StreakWrong,
		Level:         LevelFor(row.Mastery),
		PreviousLevel: LevelFor(before),
		NextReviewAt:  row.NextReviewAt,
	}
}

// scheduleReview updates NextReviewAt per the spaced-repetition policy:
// correct answers push the review out by a mastery-bucketed interval, wrong
// answers make the skill immediately due, skips leave the schedule alone.
func (t *Tracker) scheduleReview(row *SkillMastery, result shared.AnswerResult, now time.Time) {
	if !t.cfg.SpacedRepetition {
		row.NextReviewAt = nil
		return
	}

	switch result {
	case shared.ResultCorrect:
		due := now.Add(t.cfg.ReviewIntervals[reviewBucket(row.Mastery)])
		row.NextReviewAt = &due
	case shared.ResultWrong:
		due := now
		row.NextReviewAt = &due
	}
}

// reviewBucket maps mastery to a review-interval index.
func reviewBucket(mastery float64) int {
	switch {
	case mastery < 0.3:
		return 0
	case mastery <= 0.6:
		return 1
	case mastery <= 0.8:
		return 2
	default:
		return 3
	}
}
