package policy

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT RULE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRules returns the seed rule set installed on first boot. Authored
// rules in the store extend or override these; the catalog is passed into
// the store explicitly so tests can substitute fixtures.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "frustrated-before-learning",
			Context:  ContextBeforeLearning,
			Priority: 100,
			Enabled:  true,
			Conditions: []Condition{
				Compare("frustration", OpGTE, NumFact(0.70)),
			},
			Actions: []Action{
				{Type: ActionAdjustDifficulty, Params: map[string]any{"direction": "down"}},
				{Type: ActionReduceEnergyCost, Params: map[string]any{"discount": 0.5}},
			},
		},
		{
			ID:       "confident-before-learning",
			Context:  ContextBeforeLearning,
			Priority: 60,
			Enabled:  true,
			Conditions: []Condition{
				Compare("confidence", OpGTE, NumFact(0.80)),
				Compare("frustration", OpLT, NumFact(0.40)),
			},
			Actions: []Action{
				{Type: ActionAdjustDifficulty, Params: map[string]any{"direction": "up"}},
			},
		},
		{
			ID:       "stale-skills-review",
			Context:  ContextBeforeLearning,
			Priority: 40,
			Enabled:  true,
			Conditions: []Condition{
				Compare("days_since_active", OpGTE, NumFact(2)),
				Compare("dropout_risk", OpLT, NumFact(0.65)),
			},
			Actions: []Action{
				{Type: ActionTriggerReview},
			},
		},
		{
			ID:       "strong-session-reward",
			Context:  ContextAfterLearning,
			Priority: 70,
			Enabled:  true,
			Conditions: []Condition{
				Compare("correct_streak_norm", OpGTE, NumFact(0.5)),
				Compare("frustration", OpLT, NumFact(0.30)),
			},
			Actions: []Action{
				{Type: ActionSurpriseReward, Params: map[string]any{"size": "medium"}},
			},
		},
		{
			ID:       "momentum-boost",
			Context:  ContextAfterLearning,
			Priority: 50,
			Enabled:  true,
			Conditions: []Condition{
				Compare("momentum", OpGT, NumFact(0.3)),
			},
			Actions: []Action{
				{Type: ActionOfferBoost, Params: map[string]any{"multiplier": 1.25, "duration_hours": 12}},
			},
		},
		{
			ID:       "grinding-session-break",
			Context:  ContextAfterLearning,
			Priority: 65,
			Enabled:  true,
			Conditions: []Condition{
				Compare("frustration", OpGTE, NumFact(0.60)),
				Compare("wrong_streak_norm", OpGTE, NumFact(0.6)),
			},
			Actions: []Action{
				{Type: ActionSuggestBreak, Params: map[string]any{"minutes": 15}},
			},
		},
		{
			ID:       "fading-rhythm-motivation",
			Context:  ContextDaily,
			Priority: 55,
			Enabled:  true,
			Conditions: []Condition{
				Compare("rhythm", OpLT, NumFact(0.35)),
				Compare("dropout_risk", OpGTE, NumFact(0.45)),
			},
			Actions: []Action{
				{Type: ActionSendMotivation},
				{Type: ActionOfferBoost, Params: map[string]any{"multiplier": 1.5, "duration_hours": 24}},
			},
		},
		{
			ID:       "dropout-parent-nudge",
			Context:  ContextDaily,
			Priority: 80,
			Enabled:  true,
			Conditions: []Condition{
				Compare("dropout_risk", OpGTE, NumFact(0.65)),
			},
			Actions: []Action{
				{Type: ActionNudgeParent, Params: map[string]any{"reason": "dropout_risk"}},
				{Type: ActionReduceEnergyCost, Params: map[string]any{"discount": 0.3}},
			},
		},
	}
}
