package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

func newRow(masteryValue float64) *SkillMastery {
	row := NewSkillMastery("user-1", "skill-add", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	row.Mastery = masteryValue
	return row
}

func TestApply_CorrectAtMedium(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	row := newRow(0.2)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	outcome := tracker.Apply(row, shared.DifficultyMedium, shared.ResultCorrect, now)

	assert.InDelta(t, 0.26, outcome.MasteryAfter, 1e-9)
	assert.InDelta(t, 0.06, outcome.Delta, 1e-9)
	assert.Equal(t, 1, outcome.StreakCorrect)
	assert.Equal(t, 0, outcome.StreakWrong)
	require.NotNil(t, outcome.NextReviewAt)
	// 0.26 < 0.3, so the shortest interval applies.
	assert.Equal(t, now.Add(24*time.Hour), *outcome.NextReviewAt)
}

func TestApply_DifficultyFactors(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())

	tests := []struct {
		difficulty shared.Difficulty
		result     shared.AnswerResult
		wantDelta  float64
	}{
		{shared.DifficultyEasy, shared.ResultCorrect, 0.06 * 0.8},
		{shared.DifficultyMedium, shared.ResultCorrect, 0.06},
		{shared.DifficultyHard, shared.ResultCorrect, 0.06 * 1.2},
		{shared.DifficultyEasy, shared.ResultWrong, -0.08 * 0.8},
		{shared.DifficultyMedium, shared.ResultWrong, -0.08},
		{shared.DifficultyHard, shared.ResultWrong, -0.08 * 1.2},
	}

	for _, tt := range tests {
		row := newRow(0.5)
		outcome := tracker.Apply(row, tt.difficulty, tt.result, time.Now().UTC())
		assert.InDelta(t, tt.wantDelta, outcome.Delta, 1e-9,
			"difficulty=%s result=%s", tt.difficulty, tt.result)
	}
}

func TestApply_MasteryStaysClamped(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	row := newRow(0)
	now := time.Now().UTC()

	// Long alternating sequence; mastery must never leave [0,1].
	results := []shared.AnswerResult{
		shared.ResultWrong, shared.ResultWrong, shared.ResultWrong,
		shared.ResultCorrect, shared.ResultCorrect, shared.ResultCorrect,
	}
	for i := 0; i < 60; i++ {
		tracker.Apply(row, shared.DifficultyHard, results[i%len(results)], now)
		assert.GreaterOrEqual(t, row.Mastery, 0.0)
		assert.LessOrEqual(t, row.Mastery, 1.0)
	}

	// Saturate upward.
	for i := 0; i < 40; i++ {
		tracker.Apply(row, shared.DifficultyHard, shared.ResultCorrect, now)
	}
	assert.Equal(t, 1.0, row.Mastery)

	// Saturate downward.
	for i := 0; i < 40; i++ {
		tracker.Apply(row, shared.DifficultyHard, shared.ResultWrong, now)
	}
	assert.Equal(t, 0.0, row.Mastery)
}

func TestApply_StreakExclusivity(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	row := newRow(0.5)
	now := time.Now().UTC()

	sequence := []shared.AnswerResult{
		shared.ResultCorrect, shared.ResultCorrect, shared.ResultWrong,
		shared.ResultWrong, shared.ResultCorrect, shared.ResultSkipped,
		shared.ResultWrong,
	}
	for _, r := range sequence {
		tracker.Apply(row, shared.DifficultyMedium, r, now)
		if row.StreakCorrect > 0 {
			assert.Zero(t, row.StreakWrong)
		}
		if row.StreakWrong > 0 {
			assert.Zero(t, row.StreakCorrect)
		}
	}

	assert.Equal(t, 1, row.StreakWrong)
	assert.Equal(t, 0, row.StreakCorrect)
}

func TestApply_SkippedOnlyRefreshesLastSeen(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	row := newRow(0.4)
	row.StreakCorrect = 3
	now := time.Now().UTC()

	outcome := tracker.Apply(row, shared.DifficultyMedium, shared.ResultSkipped, now)

	assert.Zero(t, outcome.Delta)
	assert.Equal(t, 3, row.StreakCorrect)
	assert.Equal(t, now, row.LastSeenAt)
	assert.Nil(t, row.NextReviewAt)
}

func TestApply_ReviewBuckets(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		startMastery float64
		wantInterval time.Duration
	}{
		{0.10, 24 * time.Hour},      // 0.16 -> bucket <0.3
		{0.40, 3 * 24 * time.Hour},  // 0.46 -> bucket <=0.6
		{0.70, 7 * 24 * time.Hour},  // 0.76 -> bucket <=0.8
		{0.90, 14 * 24 * time.Hour}, // 0.96 -> bucket >0.8
	}

	for _, tt := range tests {
		row := newRow(tt.startMastery)
		outcome := tracker.Apply(row, shared.DifficultyMedium, shared.ResultCorrect, now)
		require.NotNil(t, outcome.NextReviewAt)
		assert.Equal(t, now.Add(tt.wantInterval), *outcome.NextReviewAt,
			"start mastery %.2f", tt.startMastery)
	}
}

func TestApply_LevelCrossings(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	now := time.Now().UTC()

	// 0.28 -> 0.34 crosses the novice bound upward.
	row := newRow(0.28)
	outcome := tracker.Apply(row, shared.DifficultyMedium, shared.ResultCorrect, now)
	assert.Equal(t, LevelNovice, outcome.PreviousLevel)
	assert.Equal(t, LevelApprentice, outcome.Level)
	assert.True(t, outcome.LevelShifted())

	// 0.32 -> 0.24 crosses it back downward.
	row = newRow(0.32)
	outcome = tracker.Apply(row, shared.DifficultyMedium, shared.ResultWrong, now)
	assert.Equal(t, LevelApprentice, outcome.PreviousLevel)
	assert.Equal(t, LevelNovice, outcome.Level)
	assert.True(t, outcome.LevelShifted())

	// Movement inside a bucket is not a shift.
	row = newRow(0.40)
	outcome = tracker.Apply(row, shared.DifficultyMedium, shared.ResultCorrect, now)
	assert.False(t, outcome.LevelShifted())
}

func TestApply_WrongAnswerImmediatelyDue(t *testing.T) {
	tracker := NewTracker(DefaultTrackerConfig())
	row := newRow(0.5)
	now := time.Now().UTC()

	tracker.Apply(row, shared.DifficultyMedium, shared.ResultWrong, now)

	require.NotNil(t, row.NextReviewAt)
	assert.Equal(t, now, *row.NextReviewAt)
	assert.True(t, row.IsDueForReview(now))
}

func TestApply_SpacedRepetitionDisabledClearsSchedule(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.SpacedRepetition = false
	tracker := NewTracker(cfg)

	row := newRow(0.5)
	due := time.Now().UTC()
	row.NextReviewAt = &due

	tracker.Apply(row, shared.DifficultyMedium, shared.ResultCorrect, time.Now().UTC())

	assert.Nil(t, row.NextReviewAt)
}
