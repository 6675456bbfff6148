package behavior

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORER
// ══════════════════════════════════════════════════════════════════════════════

// Thresholds for the at-risk flag. All four must hold at once.
const (
	atRiskInactivityDays  = 3.0
	atRiskFrustrationRise = 0.08
	atRiskRhythmDrop      = 0.08
)

// Scorer recomputes a user's behavioral state from telemetry windows.
//
// Delta signals (rhythm drop, frustration rise, dropout rise) are computed
// against the previously stored state inside the same call. The first-ever
// computation has no prior row, so deltas are zero by definition; the lag is
// intentional and one step long.
type Scorer struct {
	telemetry TelemetryReader
	states    StateRepository
}

// NewScorer creates a scorer.
func NewScorer(telemetry TelemetryReader, states StateRepository) *Scorer {
	return &Scorer{telemetry: telemetry, states: states}
}

// Compute aggregates the user's recent activity, derives the five composite
// scores, persists the replaced state row, and returns it. The returned
// state's Inputs bag carries the raw aggregates for rule-context merging.
func (s *Scorer) Compute(ctx context.Context, user shared.UserID, now time.Time) (*BehavioralState, error) {
	if user.IsZero() {
		return nil, fmt.Errorf("behavior: user_id: %w", shared.ErrEmptyValue)
	}

	snap, err := s.telemetry.Snapshot(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("behavior: telemetry snapshot: %w", err)
	}

	prev, err := s.states.Get(ctx, user)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("behavior: load previous state: %w", err)
	}

	state := s.score(user, snap, prev, now)

	if err := s.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("behavior: save state: %w", err)
	}
	return state, nil
}

func (s *Scorer) score(user shared.UserID, snap *TelemetrySnapshot, prev *BehavioralState, now time.Time) *BehavioralState {
	consistency := shared.Clamp01(float64(snap.ActiveDays7) / 7)
	streakNorm := shared.Clamp01(float64(snap.StreakDays) / 7)
	sessionVolumeNorm := shared.Clamp01(float64(snap.Sessions7) / 10)

	daysSinceActive := snap.DaysSinceActive(now)
	inactivityNorm := shared.Clamp01(daysSinceActive / 7)

	wrongStreakNorm := shared.Clamp01(float64(snap.StreakWrong) / 5)
	correctStreakNorm := shared.Clamp01(float64(snap.StreakCorrect) / 10)

	// Growth centered at 0.5 so flat mastery reads as neutral confidence.
	masteryGrowthNorm := shared.Clamp01(0.5 + snap.MasteryDelta14)

	xpTrend := shared.Clamp((float64(snap.XP7)-float64(snap.XPPrev7))/maxf(float64(snap.XPPrev7), 1), -1, 1)

	rhythm := shared.Clamp01(0.45*consistency + 0.35*streakNorm + 0.20*sessionVolumeNorm)
	frustration := shared.Clamp01(0.35*snap.WrongRate + 0.25*wrongStreakNorm + 0.20*snap.AbortRatio + 0.20*snap.SlowdownRatio)
	confidence := shared.Clamp01(0.40*masteryGrowthNorm + 0.35*correctStreakNorm + 0.25*(1-frustration))

	// One-step-lagged deltas: zero on first observation.
	rhythmDrop := 0.0
	frustrationRise := 0.0
	if prev != nil {
		rhythmDrop = maxf(0, prev.Rhythm-rhythm)
		frustrationRise = maxf(0, frustration-prev.Frustration)
	}

	dropoutRisk := shared.Clamp01(0.40*inactivityNorm + 0.25*rhythmDrop + 0.20*frustrationRise + 0.15*snap.TaskRejectionRate)

	dropoutRise := 0.0
	if prev != nil {
		dropoutRise = maxf(0, dropoutRisk-prev.DropoutRisk)
	}

	momentum := 0.60*xpTrend + 2.20*snap.MasteryDelta14 + 0.20*(snap.TaskApprovalRate-snap.TaskRejectionRate)

	atRisk := daysSinceActive > atRiskInactivityDays &&
		frustrationRise >= atRiskFrustrationRise &&
		rhythmDrop >= atRiskRhythmDrop &&
		snap.StreakBroken

	return &BehavioralState{
		UserID:       user,
		Rhythm:       rhythm,
		Frustration:  frustration,
		Confidence:   confidence,
		DropoutRisk:  dropoutRisk,
		Momentum:     momentum,
		AtRiskNow:    atRisk,
		LastActiveAt: snap.LastActiveAt,
		UpdatedAt:    now,
		Inputs: map[string]float64{
			"consistency":         consistency,
			"streak_norm":         streakNorm,
			"session_volume_norm": sessionVolumeNorm,
			"days_since_active":   daysSinceActive,
			"inactivity_norm":     inactivityNorm,
			"wrong_rate":          snap.WrongRate,
			"wrong_streak_norm":   wrongStreakNorm,
			"correct_streak_norm": correctStreakNorm,
			"abort_ratio":         snap.AbortRatio,
			"slowdown_ratio":      snap.SlowdownRatio,
			"mastery_growth":      masteryGrowthNorm,
			"mastery_velocity":    snap.MasteryDelta14,
			"xp_trend":            xpTrend,
			"task_approval":       snap.TaskApprovalRate,
			"task_rejection":      snap.TaskRejectionRate,
			"rhythm_drop":         rhythmDrop,
			"frustration_rise":    frustrationRise,
			"dropout_rise":        dropoutRise,
		},
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
