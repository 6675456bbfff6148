// Package policy evaluates stored conditional rules against behavioral facts
// and produces an ordered, deduplicated list of adaptive actions, biased by
// the user's active persona.
package policy

import (
	"context"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ActionType identifies one kind of adaptive action.
type ActionType string

const (
	ActionAdjustDifficulty ActionType = "ADJUST_DIFFICULTY"
	ActionTriggerReview    ActionType = "TRIGGER_REVIEW"
	ActionOfferBoost       ActionType = "OFFER_BOOST"
	ActionSurpriseReward   ActionType = "SURPRISE_REWARD"
	ActionNudgeParent      ActionType = "NUDGE_PARENT"
	ActionReduceEnergyCost ActionType = "REDUCE_ENERGY_COST"
	ActionSuggestBreak     ActionType = "SUGGEST_BREAK"
	ActionSendMotivation   ActionType = "SEND_MOTIVATION"
)

// IsReward reports whether persona reward bias and cooldowns apply.
func (t ActionType) IsReward() bool {
	return t == ActionOfferBoost || t == ActionSurpriseReward
}

// IsChallenge reports whether persona challenge bias applies.
func (t ActionType) IsChallenge() bool {
	return t == ActionAdjustDifficulty || t == ActionTriggerReview
}

// Action is one typed adaptive action with free-form parameters, handed to
// the message-template selector and effects applier downstream.
type Action struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RULES
// ══════════════════════════════════════════════════════════════════════════════

// EvaluationContext scopes rules to a moment in the product flow.
type EvaluationContext string

const (
	ContextBeforeLearning EvaluationContext = "before_learning"
	ContextAfterLearning  EvaluationContext = "after_learning"
	ContextSessionEnd     EvaluationContext = "session_end"
	ContextDaily          EvaluationContext = "daily"
)

// Rule is one stored policy rule. All conditions must hold for the rule to
// match; its actions are then emitted in order.
type Rule struct {
	ID         string
	Context    EvaluationContext
	Priority   int
	Enabled    bool
	Conditions []Condition
	Actions    []Action
}

// RuleSource provides the authored rule set.
type RuleSource interface {
	// ListEnabled returns enabled rules for the context. Order is not
	// trusted; the engine sorts.
	ListEnabled(ctx context.Context, evalCtx EvaluationContext) ([]Rule, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// COOLDOWNS
// ══════════════════════════════════════════════════════════════════════════════

// CooldownStore tracks recently issued reward actions per user.
type CooldownStore interface {
	// Active reports whether an action of this type was issued to the user
	// within its cooldown window.
	Active(ctx context.Context, user shared.UserID, action ActionType) (bool, error)

	// MarkIssued stamps an issuance with its cooldown duration.
	MarkIssued(ctx context.Context, user shared.UserID, action ActionType, ttl time.Duration) error
}

// CooldownTable maps reward bias to cooldown duration. Discrete on purpose:
// the steps are product-tuned, not a formula.
type CooldownTable struct {
	Default      time.Duration
	HighBias     time.Duration // bias >= 1.1
	VeryHighBias time.Duration // bias >= 1.3
	BypassBias   float64       // no cooldown at or above this bias
}

// DefaultCooldownTable returns the production cooldown steps.
func DefaultCooldownTable() CooldownTable {
	return CooldownTable{
		Default:      24 * time.Hour,
		HighBias:     12 * time.Hour,
		VeryHighBias: 8 * time.Hour,
		BypassBias:   1.5,
	}
}

// DurationFor picks the cooldown for a reward bias. Zero means no cooldown.
func (t CooldownTable) DurationFor(rewardBias float64) time.Duration {
	switch {
	case rewardBias >= t.BypassBias:
		return 0
	case rewardBias >= 1.3:
		return t.VeryHighBias
	case rewardBias >= 1.1:
		return t.HighBias
	default:
		return t.Default
	}
}
