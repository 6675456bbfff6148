// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/planner"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAN QUESTIONS QUERY
// Assembles a personalized practice plan and records the served items into
// the anti-repeat window.
// ══════════════════════════════════════════════════════════════════════════════

// ServedRecorder writes served content keys into the rolling anti-repeat
// window. The planner only reads the window; marking is a serving concern.
type ServedRecorder interface {
	MarkServed(ctx context.Context, user shared.UserID, key string) error
}

// PlanQuestionsQuery requests a practice plan.
type PlanQuestionsQuery struct {
	UserID shared.UserID

	// Scope narrows the candidate skills: a skill, lesson, subject, or
	// global.
	Scope shared.PlanScope

	// Count is the number of slots to fill.
	Count int

	// DifficultyCeiling caps every selection when set.
	DifficultyCeiling shared.Difficulty

	// DifficultyOverride pins every slot when set.
	DifficultyOverride shared.Difficulty

	// CorrelationID for tracing.
	CorrelationID string
}

// PlanQuestionsResult wraps the assembled plan.
type PlanQuestionsResult struct {
	Plan *planner.QuestionPlan

	// Events contains domain events generated.
	Events []shared.Event
}

// PlanQuestionsHandler handles the PlanQuestionsQuery.
type PlanQuestionsHandler struct {
	planner  *planner.Planner
	recorder ServedRecorder
	variants content.VariantRepository
	events   shared.EventPublisher
	logger   *slog.Logger
}

// NewPlanQuestionsHandler creates a new PlanQuestionsHandler.
func NewPlanQuestionsHandler(
	p *planner.Planner,
	recorder ServedRecorder,
	variants content.VariantRepository,
	events shared.EventPublisher,
	logger *slog.Logger,
) *PlanQuestionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanQuestionsHandler{
		planner:  p,
		recorder: recorder,
		variants: variants,
		events:   events,
		logger:   logger,
	}
}

// Handle builds the plan, persists generated variants for later answer
// verification, and stamps every served item into the anti-repeat window.
func (h *PlanQuestionsHandler) Handle(ctx context.Context, q PlanQuestionsQuery) (*PlanQuestionsResult, error) {
	plan, err := h.planner.Plan(ctx, planner.Request{
		UserID:             q.UserID,
		Scope:              q.Scope,
		Count:              q.Count,
		DifficultyCeiling:  q.DifficultyCeiling,
		DifficultyOverride: q.DifficultyOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("plan_questions: %w", err)
	}

	for _, item := range plan.Items {
		if item.Source == planner.SourceGenerated {
			if err := h.variants.Save(ctx, item.Variant); err != nil {
				// The variant is regenerable from its seed; only answer
				// verification weakens if this write is lost.
				h.logger.Warn("variant save failed",
					slog.String("user_id", string(q.UserID)),
					slog.String("variant_id", item.Variant.ID),
					slog.Any("error", err),
				)
			}
		}
		if err := h.recorder.MarkServed(ctx, q.UserID, item.RepeatKey); err != nil {
			h.logger.Warn("anti-repeat mark failed",
				slog.String("user_id", string(q.UserID)),
				slog.String("repeat_key", item.RepeatKey),
				slog.Any("error", err),
			)
		}
	}

	result := &PlanQuestionsResult{Plan: plan}

	event := shared.NewPlanBuiltEvent(q.UserID, q.Count, len(plan.Items), plan.FocusSkillIDs())
	if q.CorrelationID != "" {
		event = event.WithCorrelationID(q.CorrelationID)
	}
	result.Events = append(result.Events, event)

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
