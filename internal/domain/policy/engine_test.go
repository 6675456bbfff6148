package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

type fakeRuleSource struct {
	rules []Rule
}

func (f *fakeRuleSource) ListEnabled(_ context.Context, evalCtx EvaluationContext) ([]Rule, error) {
	var out []Rule
	for _, r := range f.rules {
		if r.Enabled && r.Context == evalCtx {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCooldowns struct {
	active map[ActionType]bool
	marked map[ActionType]time.Duration
}

func newFakeCooldowns() *fakeCooldowns {
	return &fakeCooldowns{active: map[ActionType]bool{}, marked: map[ActionType]time.Duration{}}
}

func (f *fakeCooldowns) Active(_ context.Context, _ shared.UserID, action ActionType) (bool, error) {
	return f.active[action], nil
}

func (f *fakeCooldowns) MarkIssued(_ context.Context, _ shared.UserID, action ActionType, ttl time.Duration) error {
	f.marked[action] = ttl
	f.active[action] = true
	return nil
}

func newTestEngine(rules []Rule, cooldowns CooldownStore) *Engine {
	if cooldowns == nil {
		cooldowns = newFakeCooldowns()
	}
	return NewEngine(&fakeRuleSource{rules: rules}, cooldowns, DefaultCooldownTable())
}

func actionTypes(actions []Action) []ActionType {
	out := make([]ActionType, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Type)
	}
	return out
}

func TestEvaluate_FrustratedBeforeLearning(t *testing.T) {
	engine := newTestEngine(DefaultRules(), nil)

	decision, err := engine.Evaluate(context.Background(), Request{
		UserID:  "user-1",
		Context: ContextBeforeLearning,
		Facts: MergeFacts(map[string]float64{
			"frustration":       0.85,
			"confidence":        0.2,
			"dropout_risk":      0.3,
			"days_since_active": 0,
		}, nil),
		Biases: NeutralBiases(),
	})
	require.NoError(t, err)

	types := actionTypes(decision.Actions)
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, ActionAdjustDifficulty, types[0])
	assert.Equal(t, "down", decision.Actions[0].Params["direction"])
	assert.Equal(t, ActionReduceEnergyCost, types[1])
}

func TestEvaluate_PriorityTimesBiasOrdersRules(t *testing.T) {
	rules := []Rule{
		{
			ID: "reward-rule", Context: ContextAfterLearning, Priority: 50, Enabled: true,
			Conditions: []Condition{Compare("momentum", OpGT, NumFact(0))},
			Actions:    []Action{{Type: ActionSurpriseReward}},
		},
		{
			ID: "challenge-rule", Context: ContextAfterLearning, Priority: 60, Enabled: true,
			Conditions: []Condition{Compare("momentum", OpGT, NumFact(0))},
			Actions:    []Action{{Type: ActionAdjustDifficulty, Params: map[string]any{"direction": "up"}}},
		},
	}
	engine := newTestEngine(rules, nil)
	facts := MergeFacts(map[string]float64{"momentum": 0.5}, nil)

	// Neutral biases: raw priority wins.
	decision, err := engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextAfterLearning, Facts: facts, Biases: NeutralBiases(),
	})
	require.NoError(t, err)
	assert.Equal(t, []ActionType{ActionAdjustDifficulty, ActionSurpriseReward}, actionTypes(decision.Actions))

	// A strong reward bias flips the weighted order: 50x1.4 > 60x1.0.
	decision, err = engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextAfterLearning, Facts: facts,
		Biases: Biases{Reward: 1.4, Challenge: 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, []ActionType{ActionSurpriseReward, ActionAdjustDifficulty}, actionTypes(decision.Actions))
}

func TestEvaluate_CalmingBiasDownWeightsChallengeRules(t *testing.T) {
	rules := []Rule{
		{
			ID: "push-harder", Context: ContextAfterLearning, Priority: 100, Enabled: true,
			Conditions: []Condition{Compare("momentum", OpGT, NumFact(0))},
			Actions:    []Action{{Type: ActionAdjustDifficulty, Params: map[string]any{"direction": "up"}}},
		},
		{
			ID: "encourage", Context: ContextAfterLearning, Priority: 80, Enabled: true,
			Conditions: []Condition{Compare("momentum", OpGT, NumFact(0))},
			Actions:    []Action{{Type: ActionSendMotivation}},
		},
	}
	engine := newTestEngine(rules, nil)
	facts := MergeFacts(map[string]float64{"momentum": 0.5}, nil)

	// A calming persona carries a challenge bias below 1.0, which must
	// actually lower the weighted score: 100x0.7 < 80x1.0.
	decision, err := engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextAfterLearning, Facts: facts,
		Biases: Biases{Reward: 1.0, Challenge: 0.7},
	})
	require.NoError(t, err)
	assert.Equal(t, []ActionType{ActionSendMotivation, ActionAdjustDifficulty}, actionTypes(decision.Actions))
	assert.Equal(t, []string{"encourage", "push-harder"}, decision.MatchedRules)
}

func TestEvaluate_TypeDeduplication(t *testing.T) {
	rules := []Rule{
		{
			ID: "a-first", Context: ContextDaily, Priority: 90, Enabled: true,
			Conditions: []Condition{Compare("rhythm", OpLT, NumFact(1))},
			Actions:    []Action{{Type: ActionSendMotivation, Params: map[string]any{"tone": "warm"}}},
		},
		{
			ID: "b-second", Context: ContextDaily, Priority: 10, Enabled: true,
			Conditions: []Condition{Compare("rhythm", OpLT, NumFact(1))},
			Actions:    []Action{{Type: ActionSendMotivation, Params: map[string]any{"tone": "stern"}}},
		},
	}
	engine := newTestEngine(rules, nil)

	decision, err := engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextDaily,
		Facts: MergeFacts(map[string]float64{"rhythm": 0.2}, nil),
	})
	require.NoError(t, err)

	require.Len(t, decision.Actions, 1)
	assert.Equal(t, "warm", decision.Actions[0].Params["tone"])
	assert.Equal(t, []string{"a-first", "b-second"}, decision.MatchedRules)
}

func TestEvaluate_UnparsableRuleIsSkipped(t *testing.T) {
	rules := []Rule{
		{
			ID: "broken", Context: ContextDaily, Priority: 100, Enabled: true,
			Conditions: []Condition{Compare("no_such_fact", OpGT, NumFact(0))},
			Actions:    []Action{{Type: ActionNudgeParent}},
		},
		{
			ID: "healthy", Context: ContextDaily, Priority: 10, Enabled: true,
			Conditions: []Condition{Compare("rhythm", OpLT, NumFact(1))},
			Actions:    []Action{{Type: ActionSendMotivation}},
		},
	}
	engine := newTestEngine(rules, nil)

	decision, err := engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextDaily,
		Facts: MergeFacts(map[string]float64{"rhythm": 0.2}, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []ActionType{ActionSendMotivation}, actionTypes(decision.Actions))
}

func TestEvaluate_CooldownSuppressesRewards(t *testing.T) {
	rules := []Rule{
		{
			ID: "reward", Context: ContextAfterLearning, Priority: 50, Enabled: true,
			Conditions: []Condition{Compare("momentum", OpGT, NumFact(0))},
			Actions:    []Action{{Type: ActionOfferBoost}, {Type: ActionTriggerReview}},
		},
	}
	cooldowns := newFakeCooldowns()
	cooldowns.active[ActionOfferBoost] = true
	engine := newTestEngine(rules, cooldowns)
	facts := MergeFacts(map[string]float64{"momentum": 0.5}, nil)

	decision, err := engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextAfterLearning, Facts: facts, Biases: NeutralBiases(),
	})
	require.NoError(t, err)

	assert.Equal(t, []ActionType{ActionTriggerReview}, actionTypes(decision.Actions))
	assert.Equal(t, []ActionType{ActionOfferBoost}, decision.Suppressed)
	assert.Equal(t, 24*time.Hour, decision.RewardCooldown)

	// Very high reward bias bypasses the cooldown entirely.
	decision, err = engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextAfterLearning, Facts: facts,
		Biases: Biases{Reward: 1.6, Challenge: 1.0},
	})
	require.NoError(t, err)
	assert.Contains(t, actionTypes(decision.Actions), ActionOfferBoost)
	assert.Zero(t, decision.RewardCooldown)
}

func TestEvaluate_AtRiskBundlePrepended(t *testing.T) {
	rules := []Rule{
		{
			ID: "also-nudges", Context: ContextDaily, Priority: 80, Enabled: true,
			Conditions: []Condition{Compare("dropout_risk", OpGTE, NumFact(0.65))},
			Actions: []Action{
				{Type: ActionNudgeParent, Params: map[string]any{"reason": "dropout_risk"}},
				{Type: ActionSendMotivation},
			},
		},
	}
	engine := newTestEngine(rules, nil)

	decision, err := engine.Evaluate(context.Background(), Request{
		UserID: "user-1", Context: ContextDaily,
		Facts:  MergeFacts(map[string]float64{"dropout_risk": 0.8}, nil),
		AtRisk: true,
	})
	require.NoError(t, err)

	types := actionTypes(decision.Actions)
	assert.Equal(t, ActionAdjustDifficulty, types[0])

	nudges := 0
	for _, a := range decision.Actions {
		if a.Type == ActionNudgeParent {
			nudges++
			assert.Equal(t, "at_risk", a.Params["reason"], "bundle nudge wins over the rule's")
		}
	}
	assert.Equal(t, 1, nudges)
	assert.Contains(t, types, ActionSendMotivation)
}

func TestCooldownTable_DurationFor(t *testing.T) {
	table := DefaultCooldownTable()

	assert.Equal(t, 24*time.Hour, table.DurationFor(1.0))
	assert.Equal(t, 12*time.Hour, table.DurationFor(1.1))
	assert.Equal(t, 8*time.Hour, table.DurationFor(1.3))
	assert.Zero(t, table.DurationFor(1.5))
}
