// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER COMMAND
// Applies one answer to the mastery store, schedules the next review, and
// appends the telemetry record the behavioral scorer aggregates later.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerCommand contains one answered practice item.
type SubmitAnswerCommand struct {
	// UserID is the answering user.
	UserID shared.UserID

	// SkillID is the skill the item practices.
	SkillID shared.SkillID

	// Difficulty the item was served at.
	Difficulty shared.Difficulty

	// Result is the answer outcome.
	Result shared.AnswerResult

	// VariantID and TemplateID identify a generated item. When both are
	// set the variant is verified to belong to the claimed template before
	// any mutation.
	VariantID  string
	TemplateID shared.TemplateID

	// QuestionID identifies a bank item instead.
	QuestionID shared.QuestionID

	// DurationMs is the time the user spent answering.
	DurationMs int64

	// Timestamp is when the answer happened (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitAnswerCommand) Validate() error {
	if c.UserID.IsZero() {
		return fmt.Errorf("submit_answer: user_id: %w", shared.ErrEmptyValue)
	}
	if c.SkillID == "" {
		return fmt.Errorf("submit_answer: skill_id: %w", shared.ErrEmptyValue)
	}
	if !c.Difficulty.IsValid() {
		return fmt.Errorf("submit_answer: difficulty %q: %w", c.Difficulty, shared.ErrValueOutOfRange)
	}
	switch c.Result {
	case shared.ResultCorrect, shared.ResultWrong, shared.ResultSkipped:
	default:
		return fmt.Errorf("submit_answer: result %q: %w", c.Result, shared.ErrValueOutOfRange)
	}
	return nil
}

// SubmitAnswerResult is the answer outcome handed to gamification and
// streak collaborators.
type SubmitAnswerResult struct {
	UserID  shared.UserID
	SkillID shared.SkillID

	// MasteryAfter and Delta describe the applied update.
	MasteryAfter float64
	Delta        float64

	StreakCorrect int
	StreakWrong   int

	// NextReviewAt is nil when spaced repetition is off or the answer was
	// skipped.
	NextReviewAt *time.Time

	// Events contains domain events generated.
	Events []shared.Event

	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerHandler handles the SubmitAnswerCommand.
type SubmitAnswerHandler struct {
	masteries mastery.Repository
	variants  content.VariantRepository
	tracker   *mastery.Tracker
	telemetry behavior.TelemetryWriter
	events    shared.EventPublisher
	logger    *slog.Logger
}

// NewSubmitAnswerHandler creates a new SubmitAnswerHandler.
func NewSubmitAnswerHandler(
	masteries mastery.Repository,
	variants content.VariantRepository,
	tracker *mastery.Tracker,
	telemetry behavior.TelemetryWriter,
	events shared.EventPublisher,
	logger *slog.Logger,
) *SubmitAnswerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitAnswerHandler{
		masteries: masteries,
		variants:  variants,
		tracker:   tracker,
		telemetry: telemetry,
		events:    events,
		logger:    logger,
	}
}

// Handle executes the submit answer command. The mastery update runs inside
// the repository's per-(user, skill) atomic read-modify-write so concurrent
// submissions for the same skill never lose streak updates.
func (h *SubmitAnswerHandler) Handle(ctx context.Context, cmd SubmitAnswerCommand) (*SubmitAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_answer: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	// Identity check before any mutation.
	if err := h.verifyVariant(ctx, cmd); err != nil {
		return nil, err
	}

	var outcome mastery.Outcome
	_, err := h.masteries.Mutate(ctx, cmd.UserID, cmd.SkillID, func(row *mastery.SkillMastery) error {
		outcome = h.tracker.Apply(row, cmd.Difficulty, cmd.Result, timestamp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit_answer: mastery update: %w", err)
	}

	if err := h.telemetry.AppendAnswer(ctx, behavior.AnswerEvent{
		UserID:       cmd.UserID,
		SkillID:      cmd.SkillID,
		QuestionRef:  cmd.questionRef(),
		Difficulty:   cmd.Difficulty,
		Result:       cmd.Result,
		MasteryDelta: outcome.Delta,
		DurationMs:   cmd.DurationMs,
		AnsweredAt:   timestamp,
	}); err != nil {
		// Telemetry is an aggregate input, not the source of truth; the
		// mastery update already committed.
		h.logger.Warn("answer telemetry append failed",
			slog.String("user_id", string(cmd.UserID)),
			slog.String("skill_id", string(cmd.SkillID)),
			slog.Any("error", err),
		)
	}

	result := &SubmitAnswerResult{
		UserID:        cmd.UserID,
		SkillID:       cmd.SkillID,
		MasteryAfter:  outcome.MasteryAfter,
		Delta:         outcome.Delta,
		StreakCorrect: outcome.StreakCorrect,
		StreakWrong:   outcome.StreakWrong,
		NextReviewAt:  outcome.NextReviewAt,
		RecordedAt:    timestamp,
	}

	correlate := func(e shared.BaseEvent) shared.Event {
		if cmd.CorrelationID != "" {
			return e.WithCorrelationID(cmd.CorrelationID)
		}
		return e
	}

	result.Events = append(result.Events, correlate(
		shared.NewAnswerRecordedEvent(cmd.UserID, cmd.SkillID, cmd.Result, outcome.MasteryAfter, outcome.Delta),
	))
	if outcome.LevelShifted() {
		result.Events = append(result.Events, correlate(
			shared.NewLevelShiftEvent(cmd.UserID, cmd.SkillID, string(outcome.PreviousLevel), string(outcome.Level)),
		))
	}

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

// verifyVariant rejects a variant that does not belong to its claimed
// template or user.
func (h *SubmitAnswerHandler) verifyVariant(ctx context.Context, cmd SubmitAnswerCommand) error {
	if cmd.VariantID == "" {
		return nil
	}

	variant, err := h.variants.GetByID(ctx, cmd.VariantID)
	if err != nil {
		return fmt.Errorf("submit_answer: load variant: %w", err)
	}
	if cmd.TemplateID != "" && variant.TemplateID != cmd.TemplateID {
		return fmt.Errorf("submit_answer: variant %s claims template %s but belongs to %s: %w",
			cmd.VariantID, cmd.TemplateID, variant.TemplateID, shared.ErrVariantMismatch)
	}
	if variant.UserID != cmd.UserID {
		return fmt.Errorf("submit_answer: variant %s was generated for another user: %w",
			cmd.VariantID, shared.ErrVariantMismatch)
	}
	return nil
}

func (c SubmitAnswerCommand) questionRef() string {
	if c.VariantID != "" {
		return c.VariantID
	}
	return string(c.QuestionID)
}
