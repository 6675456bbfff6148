package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

type fakeTelemetry struct {
	snap *TelemetrySnapshot
}

func (f *fakeTelemetry) Snapshot(_ context.Context, _ shared.UserID, _ time.Time) (*TelemetrySnapshot, error) {
	return f.snap, nil
}

type fakeStates struct {
	rows map[shared.UserID]*BehavioralState
}

func newFakeStates() *fakeStates {
	return &fakeStates{rows: map[shared.UserID]*BehavioralState{}}
}

func (f *fakeStates) Get(_ context.Context, user shared.UserID) (*BehavioralState, error) {
	if row, ok := f.rows[user]; ok {
		return row, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeStates) Save(_ context.Context, state *BehavioralState) error {
	f.rows[state.UserID] = state
	return nil
}

func activeSnapshot(user shared.UserID, now time.Time) *TelemetrySnapshot {
	lastActive := now.Add(-2 * time.Hour)
	return &TelemetrySnapshot{
		UserID:            user,
		CollectedAt:       now,
		XP7:               300,
		XPPrev7:           200,
		ActiveDays7:       6,
		Sessions7:         8,
		StreakDays:        6,
		WrongRate:         0.2,
		SlowdownRatio:     0.1,
		StreakCorrect:     4,
		AbortRatio:        0.1,
		MasteryDelta14:    0.05,
		TaskApprovalRate:  0.8,
		TaskRejectionRate: 0.1,
		LastActiveAt:      &lastActive,
	}
}

func TestCompute_ScoresBoundedAndPersisted(t *testing.T) {
	user := shared.UserID("user-1")
	now := time.Now().UTC()
	states := newFakeStates()
	scorer := NewScorer(&fakeTelemetry{snap: activeSnapshot(user, now)}, states)

	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)

	for name, score := range map[string]float64{
		"rhythm":       state.Rhythm,
		"frustration":  state.Frustration,
		"confidence":   state.Confidence,
		"dropout_risk": state.DropoutRisk,
	} {
		assert.GreaterOrEqual(t, score, 0.0, name)
		assert.LessOrEqual(t, score, 1.0, name)
	}

	stored, err := states.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, state, stored)
}

func TestCompute_RhythmFormula(t *testing.T) {
	user := shared.UserID("user-2")
	now := time.Now().UTC()
	snap := activeSnapshot(user, now)
	snap.ActiveDays7 = 7 // consistency 1.0
	snap.StreakDays = 7  // streakNorm 1.0
	snap.Sessions7 = 5   // volume 0.5

	scorer := NewScorer(&fakeTelemetry{snap: snap}, newFakeStates())
	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)

	assert.InDelta(t, 0.45*1+0.35*1+0.20*0.5, state.Rhythm, 1e-9)
}

func TestCompute_FrustrationFormula(t *testing.T) {
	user := shared.UserID("user-3")
	now := time.Now().UTC()
	snap := activeSnapshot(user, now)
	snap.WrongRate = 0.6
	snap.StreakWrong = 5 // wrongStreakNorm 1.0
	snap.StreakCorrect = 0
	snap.AbortRatio = 0.5
	snap.SlowdownRatio = 0.4

	scorer := NewScorer(&fakeTelemetry{snap: snap}, newFakeStates())
	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)

	assert.InDelta(t, 0.35*0.6+0.25*1+0.20*0.5+0.20*0.4, state.Frustration, 1e-9)
}

func TestCompute_FirstObservationHasZeroDeltas(t *testing.T) {
	user := shared.UserID("user-4")
	now := time.Now().UTC()
	snap := activeSnapshot(user, now)
	// Worst-case activity collapse: without a prior row the delta terms
	// still must not fire.
	inactive := now.Add(-10 * 24 * time.Hour)
	snap.LastActiveAt = &inactive
	snap.StreakBroken = true
	snap.WrongRate = 1

	scorer := NewScorer(&fakeTelemetry{snap: snap}, newFakeStates())
	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)

	assert.Zero(t, state.Input("rhythm_drop"))
	assert.Zero(t, state.Input("frustration_rise"))
	assert.Zero(t, state.Input("dropout_rise"))
	assert.False(t, state.AtRiskNow)
}

func TestCompute_AtRiskRequiresAllSignals(t *testing.T) {
	user := shared.UserID("user-5")
	now := time.Now().UTC()
	states := newFakeStates()

	// Seed a healthy prior state so the collapse produces real deltas.
	scorer := NewScorer(&fakeTelemetry{snap: activeSnapshot(user, now)}, states)
	_, err := scorer.Compute(context.Background(), user, now.Add(-24*time.Hour))
	require.NoError(t, err)

	collapsed := activeSnapshot(user, now)
	inactive := now.Add(-5 * 24 * time.Hour)
	collapsed.LastActiveAt = &inactive
	collapsed.ActiveDays7 = 0
	collapsed.StreakDays = 0
	collapsed.Sessions7 = 0
	collapsed.StreakBroken = true
	collapsed.WrongRate = 0.9
	collapsed.StreakWrong = 4
	collapsed.StreakCorrect = 0
	collapsed.AbortRatio = 0.8

	scorer = NewScorer(&fakeTelemetry{snap: collapsed}, states)
	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)
	assert.True(t, state.AtRiskNow)
	assert.Greater(t, state.Input("rhythm_drop"), 0.08)
	assert.Greater(t, state.Input("frustration_rise"), 0.08)

	// Same collapse without the broken streak must not flag.
	collapsed.StreakBroken = false
	states = newFakeStates()
	scorer = NewScorer(&fakeTelemetry{snap: activeSnapshot(user, now)}, states)
	_, err = scorer.Compute(context.Background(), user, now.Add(-24*time.Hour))
	require.NoError(t, err)
	scorer = NewScorer(&fakeTelemetry{snap: collapsed}, states)
	state, err = scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)
	assert.False(t, state.AtRiskNow)
}

func TestCompute_MomentumSign(t *testing.T) {
	user := shared.UserID("user-6")
	now := time.Now().UTC()

	growing := activeSnapshot(user, now)
	growing.XP7 = 400
	growing.XPPrev7 = 100
	growing.MasteryDelta14 = 0.1

	scorer := NewScorer(&fakeTelemetry{snap: growing}, newFakeStates())
	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)
	assert.Positive(t, state.Momentum)

	fading := activeSnapshot(user, now)
	fading.XP7 = 0
	fading.XPPrev7 = 300
	fading.MasteryDelta14 = -0.1
	fading.TaskApprovalRate = 0.1
	fading.TaskRejectionRate = 0.7

	scorer = NewScorer(&fakeTelemetry{snap: fading}, newFakeStates())
	state, err = scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)
	assert.Negative(t, state.Momentum)
}

func TestFacts_MergesScoresAndInputs(t *testing.T) {
	user := shared.UserID("user-7")
	now := time.Now().UTC()
	scorer := NewScorer(&fakeTelemetry{snap: activeSnapshot(user, now)}, newFakeStates())

	state, err := scorer.Compute(context.Background(), user, now)
	require.NoError(t, err)

	facts := state.Facts()
	assert.Equal(t, state.Frustration, facts["frustration"])
	assert.Equal(t, state.DropoutRisk, facts["dropout_risk"])
	assert.Contains(t, facts, "wrong_rate")
	assert.Contains(t, facts, "dropout_rise")
	assert.Equal(t, 0.0, facts["at_risk_now"])
}
