package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DUE REVIEWS QUERY
// Lists the skills whose spaced-repetition review is due, for the product
// surface that prompts "time to review" and for review-focused plan requests.
// ══════════════════════════════════════════════════════════════════════════════

// DueReviewsQuery asks which skills are due for review.
type DueReviewsQuery struct {
	UserID shared.UserID

	// CorrelationID for tracing.
	CorrelationID string
}

// DueReviewsResult lists the due skills.
type DueReviewsResult struct {
	UserID   shared.UserID
	SkillIDs []shared.SkillID

	// Events contains domain events generated.
	Events []shared.Event

	CheckedAt time.Time
}

// DueReviewsHandler handles the DueReviewsQuery.
type DueReviewsHandler struct {
	masteries mastery.Repository
	events    shared.EventPublisher
	logger    *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewDueReviewsHandler creates a new DueReviewsHandler.
func NewDueReviewsHandler(masteries mastery.Repository, events shared.EventPublisher, logger *slog.Logger) *DueReviewsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DueReviewsHandler{
		masteries: masteries,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle returns the user's due skills and announces each one on the bus so
// notification collaborators can prompt a review.
func (h *DueReviewsHandler) Handle(ctx context.Context, q DueReviewsQuery) (*DueReviewsResult, error) {
	if q.UserID.IsZero() {
		return nil, fmt.Errorf("due_reviews: user_id: %w", shared.ErrEmptyValue)
	}

	now := h.now()

	due, err := h.masteries.FindDueForReview(ctx, q.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("due_reviews: %w", err)
	}

	result := &DueReviewsResult{UserID: q.UserID, SkillIDs: due, CheckedAt: now}

	for _, skill := range due {
		event := shared.NewReviewDueEvent(q.UserID, skill)
		if q.CorrelationID != "" {
			event = event.WithCorrelationID(q.CorrelationID)
		}
		result.Events = append(result.Events, event)
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
