package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/persona"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/policy"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeTelemetry struct {
	snap *behavior.TelemetrySnapshot
}

func (f *fakeTelemetry) Snapshot(_ context.Context, _ shared.UserID, _ time.Time) (*behavior.TelemetrySnapshot, error) {
	return f.snap, nil
}

type fakeBehaviorStates struct {
	rows map[shared.UserID]*behavior.BehavioralState
}

func (f *fakeBehaviorStates) Get(_ context.Context, user shared.UserID) (*behavior.BehavioralState, error) {
	if row, ok := f.rows[user]; ok {
		return row, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeBehaviorStates) Save(_ context.Context, state *behavior.BehavioralState) error {
	f.rows[state.UserID] = state
	return nil
}

type fakePersonaStates struct {
	rows map[shared.UserID]*persona.UserPersonaState
}

func (f *fakePersonaStates) Get(_ context.Context, user shared.UserID) (*persona.UserPersonaState, error) {
	if row, ok := f.rows[user]; ok {
		return row, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakePersonaStates) Save(_ context.Context, state *persona.UserPersonaState) error {
	f.rows[state.UserID] = state
	return nil
}

type fakeRules struct {
	rules []policy.Rule
}

func (f *fakeRules) ListEnabled(_ context.Context, evalCtx policy.EvaluationContext) ([]policy.Rule, error) {
	var out []policy.Rule
	for _, r := range f.rules {
		if r.Enabled && r.Context == evalCtx {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCooldowns struct {
	active map[policy.ActionType]bool
	marked map[policy.ActionType]time.Duration
}

func newFakeCooldowns() *fakeCooldowns {
	return &fakeCooldowns{active: map[policy.ActionType]bool{}, marked: map[policy.ActionType]time.Duration{}}
}

func (f *fakeCooldowns) Active(_ context.Context, _ shared.UserID, action policy.ActionType) (bool, error) {
	return f.active[action], nil
}

func (f *fakeCooldowns) MarkIssued(_ context.Context, _ shared.UserID, action policy.ActionType, ttl time.Duration) error {
	f.marked[action] = ttl
	f.active[action] = true
	return nil
}

type fakeBus struct {
	published []shared.Event
}

func (f *fakeBus) Publish(e shared.Event) error {
	f.published = append(f.published, e)
	return nil
}

func (f *fakeBus) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.EventType())
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type decideFixture struct {
	handler   *DecideActionsHandler
	telemetry *fakeTelemetry
	cooldowns *fakeCooldowns
	bus       *fakeBus
}

func newDecideFixture(rules []policy.Rule) *decideFixture {
	telemetry := &fakeTelemetry{snap: frustratedSnapshot("user-1", time.Now().UTC())}
	cooldowns := newFakeCooldowns()
	bus := &fakeBus{}

	scorer := behavior.NewScorer(telemetry, &fakeBehaviorStates{rows: map[shared.UserID]*behavior.BehavioralState{}})
	resolver := persona.NewResolver(persona.DefaultCatalog(), &fakePersonaStates{rows: map[shared.UserID]*persona.UserPersonaState{}})
	engine := policy.NewEngine(&fakeRules{rules: rules}, cooldowns, policy.DefaultCooldownTable())

	return &decideFixture{
		handler:   NewDecideActionsHandler(scorer, resolver, engine, cooldowns, bus, nil),
		telemetry: telemetry,
		cooldowns: cooldowns,
		bus:       bus,
	}
}

// frustratedSnapshot produces a frustration score of
// .35*1 + .25*1 + .20*1 + .20*1 = 1.0, comfortably past every threshold.
func frustratedSnapshot(user shared.UserID, now time.Time) *behavior.TelemetrySnapshot {
	lastActive := now.Add(-time.Hour)
	return &behavior.TelemetrySnapshot{
		UserID:        user,
		CollectedAt:   now,
		ActiveDays7:   3,
		Sessions7:     2,
		StreakDays:    1,
		WrongRate:     1.0,
		StreakWrong:   5,
		AbortRatio:    1.0,
		SlowdownRatio: 1.0,
		LastActiveAt:  &lastActive,
	}
}

func calmSnapshot(user shared.UserID, now time.Time) *behavior.TelemetrySnapshot {
	lastActive := now.Add(-time.Hour)
	return &behavior.TelemetrySnapshot{
		UserID:           user,
		CollectedAt:      now,
		XP7:              200,
		XPPrev7:          150,
		ActiveDays7:      6,
		Sessions7:        7,
		StreakDays:       6,
		WrongRate:        0.1,
		StreakCorrect:    5,
		MasteryDelta14:   0.05,
		TaskApprovalRate: 0.9,
		LastActiveAt:     &lastActive,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestHandle_FrustratedBeforeLearningPipeline(t *testing.T) {
	fx := newDecideFixture(policy.DefaultRules())

	result, err := fx.handler.Handle(context.Background(), DecideActionsQuery{
		UserID:  "user-1",
		Context: policy.ContextBeforeLearning,
	})
	require.NoError(t, err)

	// Frustration 1.0 switches the persona to calming and fires the
	// difficulty-down rule first.
	assert.Equal(t, persona.KeyCalming, result.Persona.Key)
	require.NotEmpty(t, result.Actions)
	assert.Equal(t, policy.ActionAdjustDifficulty, result.Actions[0].Type)
	assert.Equal(t, "down", result.Actions[0].Params["direction"])
	assert.Equal(t, policy.ActionReduceEnergyCost, result.Actions[1].Type)

	types := fx.bus.types()
	assert.Contains(t, types, shared.EventStateRecomputed)
	assert.Contains(t, types, shared.EventPersonaSwitched)
	assert.Contains(t, types, shared.EventActionsIssued)
}

func TestHandle_RewardIssuanceStampsCooldown(t *testing.T) {
	rules := []policy.Rule{
		{
			ID: "always-reward", Context: policy.ContextAfterLearning, Priority: 50, Enabled: true,
			Conditions: []policy.Condition{policy.Compare("rhythm", policy.OpGTE, policy.NumFact(0))},
			Actions:    []policy.Action{{Type: policy.ActionSurpriseReward}},
		},
	}
	fx := newDecideFixture(rules)
	fx.telemetry.snap = calmSnapshot("user-1", time.Now().UTC())

	result, err := fx.handler.Handle(context.Background(), DecideActionsQuery{
		UserID:  "user-1",
		Context: policy.ContextAfterLearning,
	})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)

	// Neutral persona: 24h cooldown stamped for the issued reward.
	assert.Equal(t, 24*time.Hour, fx.cooldowns.marked[policy.ActionSurpriseReward])

	// Second decision inside the window suppresses the reward.
	result, err = fx.handler.Handle(context.Background(), DecideActionsQuery{
		UserID:  "user-1",
		Context: policy.ContextAfterLearning,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Actions)
	assert.Equal(t, []policy.ActionType{policy.ActionSurpriseReward}, result.Suppressed)
}

func TestHandle_StateIsPersistedBetweenCalls(t *testing.T) {
	fx := newDecideFixture(nil)
	now := time.Now().UTC()
	fx.telemetry.snap = calmSnapshot("user-1", now)

	first, err := fx.handler.Handle(context.Background(), DecideActionsQuery{
		UserID:  "user-1",
		Context: policy.ContextDaily,
	})
	require.NoError(t, err)
	require.NotNil(t, first.State)

	// A collapse after a healthy baseline produces nonzero deltas, proving
	// the first state row was stored and read back.
	fx.telemetry.snap = frustratedSnapshot("user-1", now)
	second, err := fx.handler.Handle(context.Background(), DecideActionsQuery{
		UserID:  "user-1",
		Context: policy.ContextDaily,
	})
	require.NoError(t, err)
	assert.Greater(t, second.State.Input("frustration_rise"), 0.0)
}

func TestHandle_ExtraFactsReachRules(t *testing.T) {
	rules := []policy.Rule{
		{
			ID: "lesson-specific", Context: policy.ContextBeforeLearning, Priority: 10, Enabled: true,
			Conditions: []policy.Condition{policy.Literal("lesson_id", policy.StrFact("lesson-7"))},
			Actions:    []policy.Action{{Type: policy.ActionTriggerReview}},
		},
	}
	fx := newDecideFixture(rules)
	fx.telemetry.snap = calmSnapshot("user-1", time.Now().UTC())

	result, err := fx.handler.Handle(context.Background(), DecideActionsQuery{
		UserID:     "user-1",
		Context:    policy.ContextBeforeLearning,
		ExtraFacts: map[string]any{"lesson_id": "lesson-7"},
	})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, policy.ActionTriggerReview, result.Actions[0].Type)
}

func TestHandle_ValidatesQuery(t *testing.T) {
	fx := newDecideFixture(nil)

	_, err := fx.handler.Handle(context.Background(), DecideActionsQuery{Context: policy.ContextDaily})
	assert.Error(t, err)

	_, err = fx.handler.Handle(context.Background(), DecideActionsQuery{UserID: "user-1"})
	assert.Error(t, err)
}
