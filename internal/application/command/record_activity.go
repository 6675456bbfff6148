package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMANDS
// Session and task-outcome ingest. These records feed the behavioral scorer's
// activity windows; they mutate no mastery state.
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand opens a practice session.
type StartSessionCommand struct {
	UserID shared.UserID

	// StartedAt defaults to now when zero.
	StartedAt time.Time
}

// EndSessionCommand closes a session with its totals.
type EndSessionCommand struct {
	SessionID string

	// EndedAt defaults to now when zero.
	EndedAt  time.Time
	XPEarned int
	Answers  int
}

// RecordTaskOutcomeCommand records a parent approving or rejecting a task.
type RecordTaskOutcomeCommand struct {
	UserID   shared.UserID
	Approved bool

	// OccurredAt defaults to now when zero.
	OccurredAt time.Time
}

// RecordActivityHandler handles the activity ingest commands.
type RecordActivityHandler struct {
	activity behavior.ActivityWriter
	logger   *slog.Logger
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(activity behavior.ActivityWriter, logger *slog.Logger) *RecordActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordActivityHandler{activity: activity, logger: logger}
}

// HandleStartSession opens a session and returns its ID.
func (h *RecordActivityHandler) HandleStartSession(ctx context.Context, cmd StartSessionCommand) (string, error) {
	if cmd.UserID.IsZero() {
		return "", fmt.Errorf("start_session: user_id: %w", shared.ErrEmptyValue)
	}
	if cmd.StartedAt.IsZero() {
		cmd.StartedAt = time.Now().UTC()
	}

	id, err := h.activity.RecordSessionStart(ctx, cmd.UserID, cmd.StartedAt)
	if err != nil {
		return "", fmt.Errorf("start_session: %w", err)
	}
	return id, nil
}

// HandleEndSession closes a session.
func (h *RecordActivityHandler) HandleEndSession(ctx context.Context, cmd EndSessionCommand) error {
	if cmd.SessionID == "" {
		return fmt.Errorf("end_session: session_id: %w", shared.ErrEmptyValue)
	}
	if cmd.EndedAt.IsZero() {
		cmd.EndedAt = time.Now().UTC()
	}
	if cmd.XPEarned < 0 || cmd.Answers < 0 {
		return fmt.Errorf("end_session: totals must be non-negative: %w", shared.ErrValueOutOfRange)
	}

	if err := h.activity.RecordSessionEnd(ctx, cmd.SessionID, cmd.EndedAt, cmd.XPEarned, cmd.Answers); err != nil {
		return fmt.Errorf("end_session: %w", err)
	}
	return nil
}

// HandleTaskOutcome records a task approval or rejection.
func (h *RecordActivityHandler) HandleTaskOutcome(ctx context.Context, cmd RecordTaskOutcomeCommand) error {
	if cmd.UserID.IsZero() {
		return fmt.Errorf("task_outcome: user_id: %w", shared.ErrEmptyValue)
	}
	if cmd.OccurredAt.IsZero() {
		cmd.OccurredAt = time.Now().UTC()
	}

	if err := h.activity.RecordTaskOutcome(ctx, cmd.UserID, cmd.Approved, cmd.OccurredAt); err != nil {
		return fmt.Errorf("task_outcome: %w", err)
	}
	return nil
}
