package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Biases is the persona weighting applied to matched rules. Neutral is 1.0
// everywhere; absence of persona data degrades to NeutralBiases.
type Biases struct {
	Reward    float64
	Challenge float64
}

// NeutralBiases returns the no-persona default.
func NeutralBiases() Biases {
	return Biases{Reward: 1.0, Challenge: 1.0}
}

// Request is one evaluation call.
type Request struct {
	UserID  shared.UserID
	Context EvaluationContext
	Facts   map[string]FactValue
	AtRisk  bool
	Biases  Biases
}

// Decision is the ordered, deduplicated action list plus issuance metadata
// the caller needs to stamp cooldowns.
type Decision struct {
	Actions []Action

	// Suppressed lists reward actions dropped by an active cooldown.
	Suppressed []ActionType

	// RewardCooldown is the TTL the caller must stamp for each issued
	// reward action. Zero means cooldowns are bypassed at this bias.
	RewardCooldown time.Duration

	// MatchedRules records the winning order for observability.
	MatchedRules []string
}

// Engine evaluates stored rules against behavioral facts. Stateless per
// call; every decision is a pure function of the rules, the facts, and the
// cooldown store's point-in-time view.
type Engine struct {
	rules     RuleSource
	cooldowns CooldownStore
	table     CooldownTable

	protectionOff bool
}

// NewEngine creates an engine.
func NewEngine(rules RuleSource, cooldowns CooldownStore, table CooldownTable) *Engine {
	if table.Default == 0 {
		table = DefaultCooldownTable()
	}
	return &Engine{rules: rules, cooldowns: cooldowns, table: table}
}

// SetProtectiveBundle toggles the at-risk bundle. Rules still see the
// at_risk_now fact when protection is off; only the prepended bundle stops.
func (e *Engine) SetProtectiveBundle(enabled bool) {
	e.protectionOff = !enabled
}

type matchedRule struct {
	rule  Rule
	score float64
}

// Evaluate runs the rule set for one user and context.
//
// Matched rules are re-scored as priority times the persona bias of their
// action mix, re-sorted, and flattened. The first occurrence of each action
// type wins. When the user is at risk a fixed protective bundle is prepended
// ahead of all rule-driven actions and participates in the same
// deduplication, so a rule cannot add a second parent nudge.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Decision, error) {
	if req.UserID.IsZero() {
		return nil, fmt.Errorf("policy: user_id: %w", shared.ErrEmptyValue)
	}
	if req.Biases == (Biases{}) {
		req.Biases = NeutralBiases()
	}

	rules, err := e.rules.ListEnabled(ctx, req.Context)
	if err != nil {
		return nil, fmt.Errorf("policy: list rules: %w", err)
	}

	matched := make([]matchedRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled || rule.Context != req.Context {
			continue
		}
		if !e.ruleMatches(rule, req.Facts) {
			continue
		}
		matched = append(matched, matchedRule{
			rule:  rule,
			score: float64(rule.Priority) * e.ruleBias(rule, req.Biases),
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		if matched[i].rule.Priority != matched[j].rule.Priority {
			return matched[i].rule.Priority > matched[j].rule.Priority
		}
		return matched[i].rule.ID < matched[j].rule.ID
	})

	decision := &Decision{RewardCooldown: e.table.DurationFor(req.Biases.Reward)}

	ordered := make([]Action, 0, len(matched)*2+4)
	if req.AtRisk && !e.protectionOff {
		ordered = append(ordered, protectiveBundle()...)
	}
	for _, m := range matched {
		decision.MatchedRules = append(decision.MatchedRules, m.rule.ID)
		ordered = append(ordered, m.rule.Actions...)
	}

	seen := make(map[ActionType]bool, len(ordered))
	for _, action := range ordered {
		if seen[action.Type] {
			continue
		}
		seen[action.Type] = true

		if action.Type.IsReward() && decision.RewardCooldown > 0 {
			active, err := e.cooldowns.Active(ctx, req.UserID, action.Type)
			if err != nil {
				// A stale cooldown view only risks an extra reward.
				active = false
			}
			if active {
				decision.Suppressed = append(decision.Suppressed, action.Type)
				continue
			}
		}

		decision.Actions = append(decision.Actions, action)
	}

	return decision, nil
}

// ruleMatches requires every condition to hold. Any evaluation error makes
// the rule non-matching, never a hard failure.
func (e *Engine) ruleMatches(rule Rule, facts map[string]FactValue) bool {
	for _, cond := range rule.Conditions {
		ok, err := cond.Eval(facts)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// ruleBias picks the persona weight for a rule's action mix. A rule mixing
// reward and challenge actions takes the stronger applicable bias; a rule
// with neither kind stays at neutral 1.0. Sub-1.0 biases apply too, so a
// calming persona genuinely down-weights challenge rules.
func (e *Engine) ruleBias(rule Rule, biases Biases) float64 {
	bias := 0.0
	for _, action := range rule.Actions {
		switch {
		case action.Type.IsReward():
			if biases.Reward > bias {
				bias = biases.Reward
			}
		case action.Type.IsChallenge():
			if biases.Challenge > bias {
				bias = biases.Challenge
			}
		}
	}
	if bias == 0 {
		return 1.0
	}
	return bias
}

// protectiveBundle is the fixed at-risk action set, prepended ahead of all
// rule-driven actions.
func protectiveBundle() []Action {
	return []Action{
		{Type: ActionAdjustDifficulty, Params: map[string]any{"direction": "down", "cap": "easy"}},
		{Type: ActionSurpriseReward, Params: map[string]any{"size": "small"}},
		{Type: ActionOfferBoost, Params: map[string]any{"multiplier": 1.5, "duration_hours": 24}},
		{Type: ActionNudgeParent, Params: map[string]any{"reason": "at_risk"}},
	}
}
