package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/persona"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/policy"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECIDE ACTIONS QUERY
// The full decision pipeline: recompute behavioral state, resolve the active
// persona, evaluate policy rules, and stamp reward cooldowns.
// ══════════════════════════════════════════════════════════════════════════════

// DecideActionsQuery requests adaptive actions for one user and context.
type DecideActionsQuery struct {
	UserID shared.UserID

	// Context scopes which rules apply (before_learning, after_learning,
	// session_end, daily).
	Context policy.EvaluationContext

	// ExtraFacts are caller-provided facts merged over the behavioral
	// scores for rule evaluation.
	ExtraFacts map[string]any

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the query.
func (q DecideActionsQuery) Validate() error {
	if q.UserID.IsZero() {
		return fmt.Errorf("decide_actions: user_id: %w", shared.ErrEmptyValue)
	}
	if q.Context == "" {
		return fmt.Errorf("decide_actions: context: %w", shared.ErrEmptyValue)
	}
	return nil
}

// DecideActionsResult is the ordered action list plus the state and persona
// it was decided under.
type DecideActionsResult struct {
	Actions    []policy.Action
	Suppressed []policy.ActionType

	State   *behavior.BehavioralState
	Persona persona.Persona

	// Events contains domain events generated.
	Events []shared.Event

	DecidedAt time.Time
}

// DecideActionsHandler handles the DecideActionsQuery.
type DecideActionsHandler struct {
	scorer    *behavior.Scorer
	resolver  *persona.Resolver
	engine    *policy.Engine
	cooldowns policy.CooldownStore
	events    shared.EventPublisher
	logger    *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewDecideActionsHandler creates a new DecideActionsHandler.
func NewDecideActionsHandler(
	scorer *behavior.Scorer,
	resolver *persona.Resolver,
	engine *policy.Engine,
	cooldowns policy.CooldownStore,
	events shared.EventPublisher,
	logger *slog.Logger,
) *DecideActionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecideActionsHandler{
		scorer:    scorer,
		resolver:  resolver,
		engine:    engine,
		cooldowns: cooldowns,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle runs the decision pipeline end to end. Missing persona data never
// fails the call; the engine degrades to neutral biases.
func (h *DecideActionsHandler) Handle(ctx context.Context, q DecideActionsQuery) (*DecideActionsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := h.now()

	state, err := h.scorer.Compute(ctx, q.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("decide_actions: compute state: %w", err)
	}

	result := &DecideActionsResult{State: state, DecidedAt: now}

	biases := policy.NeutralBiases()
	resolution, err := h.resolver.Resolve(ctx, q.UserID, state, now)
	if err != nil {
		// Persona data is a bias input, not a decision prerequisite.
		h.logger.Warn("persona resolution degraded to neutral",
			slog.String("user_id", string(q.UserID)),
			slog.Any("error", err),
		)
	} else {
		result.Persona = resolution.Persona
		biases = policy.Biases{
			Reward:    resolution.Persona.RewardBias,
			Challenge: resolution.Persona.ChallengeBias,
		}
	}

	decision, err := h.engine.Evaluate(ctx, policy.Request{
		UserID:  q.UserID,
		Context: q.Context,
		Facts:   policy.MergeFacts(state.Facts(), q.ExtraFacts),
		AtRisk:  state.AtRiskNow,
		Biases:  biases,
	})
	if err != nil {
		return nil, fmt.Errorf("decide_actions: evaluate rules: %w", err)
	}

	result.Actions = decision.Actions
	result.Suppressed = decision.Suppressed

	// Stamp cooldowns for issued rewards so repeats stay suppressed.
	if decision.RewardCooldown > 0 {
		for _, action := range decision.Actions {
			if !action.Type.IsReward() {
				continue
			}
			if err := h.cooldowns.MarkIssued(ctx, q.UserID, action.Type, decision.RewardCooldown); err != nil {
				h.logger.Warn("cooldown stamp failed",
					slog.String("user_id", string(q.UserID)),
					slog.String("action_type", string(action.Type)),
					slog.Any("error", err),
				)
			}
		}
	}

	result.Events = h.collectEvents(q, state, resolution, decision)
	for _, e := range result.Events {
		if err := h.events.Publish(e); err != nil {
			h.logger.Warn("event publish failed",
				slog.String("event_type", string(e.EventType())),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}

func (h *DecideActionsHandler) collectEvents(
	q DecideActionsQuery,
	state *behavior.BehavioralState,
	resolution *persona.Resolution,
	decision *policy.Decision,
) []shared.Event {
	correlate := func(e shared.BaseEvent) shared.Event {
		if q.CorrelationID != "" {
			return e.WithCorrelationID(q.CorrelationID)
		}
		return e
	}

	events := []shared.Event{
		correlate(shared.NewStateRecomputedEvent(
			q.UserID,
			state.Rhythm, state.Frustration, state.Confidence, state.DropoutRisk, state.Momentum,
			state.AtRiskNow,
		)),
	}

	if state.AtRiskNow {
		events = append(events, correlate(shared.NewUserAtRiskEvent(q.UserID)))
	}
	if resolution != nil && resolution.Switched {
		events = append(events, correlate(shared.NewPersonaSwitchedEvent(
			q.UserID, string(resolution.Previous), string(resolution.Persona.Key),
		)))
	}

	types := make([]string, 0, len(decision.Actions))
	for _, a := range decision.Actions {
		types = append(types, string(a.Type))
	}
	suppressed := make([]string, 0, len(decision.Suppressed))
	for _, t := range decision.Suppressed {
		suppressed = append(suppressed, string(t))
	}
	events = append(events, correlate(shared.NewActionsIssuedEvent(q.UserID, string(q.Context), types, suppressed)))

	return events
}
