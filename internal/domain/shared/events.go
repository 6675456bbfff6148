package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in one of the engines; downstream collaborators (gamification,
// messaging, effects application) subscribe to these in-process.
const (
	// Mastery events
	EventAnswerRecorded EventType = "mastery.answer_recorded"
	EventLevelShift     EventType = "mastery.level_shift"
	EventReviewDue      EventType = "mastery.review_due"

	// Planning events
	EventPlanBuilt EventType = "planner.plan_built"

	// Behavior events
	EventStateRecomputed EventType = "behavior.state_recomputed"
	EventUserAtRisk      EventType = "behavior.user_at_risk"

	// Policy events
	EventActionsIssued EventType = "policy.actions_issued"

	// Persona events
	EventPersonaSwitched EventType = "persona.switched"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a published event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event Event) error
}

// ══════════════════════════════════════════════════════════════════════════════
// BASE EVENT
// ══════════════════════════════════════════════════════════════════════════════

// BaseEvent provides common event fields.
type BaseEvent struct {
	Type        EventType
	Aggregate   string
	Timestamp   time.Time
	Correlation string
	Data        map[string]interface{}
}

// NewBaseEvent creates a base event with the current UTC timestamp.
func NewBaseEvent(t EventType, aggregate string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	return BaseEvent{
		Type:      t,
		Aggregate: aggregate,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithCorrelationID attaches a correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.Correlation = id
	return e
}

func (e BaseEvent) EventType() EventType            { return e.Type }
func (e BaseEvent) OccurredAt() time.Time           { return e.Timestamp }
func (e BaseEvent) AggregateID() string             { return e.Aggregate }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }

// ══════════════════════════════════════════════════════════════════════════════
// CONCRETE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// NewAnswerRecordedEvent is emitted after a mastery update is applied.
func NewAnswerRecordedEvent(user UserID, skill SkillID, result AnswerResult, masteryAfter, delta float64) BaseEvent {
	return NewBaseEvent(EventAnswerRecorded, string(user), map[string]interface{}{
		"skill_id":      string(skill),
		"result":        string(result),
		"mastery_after": masteryAfter,
		"delta":         delta,
	})
}

// NewReviewDueEvent is emitted for each skill found due for spaced review.
func NewReviewDueEvent(user UserID, skill SkillID) BaseEvent {
	return NewBaseEvent(EventReviewDue, string(user), map[string]interface{}{
		"skill_id": string(skill),
	})
}

// NewLevelShiftEvent is emitted when an answer moves a skill across a
// mastery-level bound, in either direction.
func NewLevelShiftEvent(user UserID, skill SkillID, from, to string) BaseEvent {
	return NewBaseEvent(EventLevelShift, string(user), map[string]interface{}{
		"skill_id": string(skill),
		"from":     from,
		"to":       to,
	})
}

// NewPlanBuiltEvent is emitted after a question plan is assembled. Requested
// counts the slots asked for; item_count the slots actually filled.
func NewPlanBuiltEvent(user UserID, requested, itemCount int, focusSkills []SkillID) BaseEvent {
	skills := make([]string, 0, len(focusSkills))
	for _, s := range focusSkills {
		skills = append(skills, string(s))
	}
	return NewBaseEvent(EventPlanBuilt, string(user), map[string]interface{}{
		"requested":    requested,
		"item_count":   itemCount,
		"focus_skills": skills,
	})
}

// NewStateRecomputedEvent is emitted after the behavioral state is replaced.
func NewStateRecomputedEvent(user UserID, rhythm, frustration, confidence, dropoutRisk, momentum float64, atRisk bool) BaseEvent {
	return NewBaseEvent(EventStateRecomputed, string(user), map[string]interface{}{
		"rhythm":       rhythm,
		"frustration":  frustration,
		"confidence":   confidence,
		"dropout_risk": dropoutRisk,
		"momentum":     momentum,
		"at_risk_now":  atRisk,
	})
}

// NewUserAtRiskEvent is emitted when the protective at-risk bundle fires.
func NewUserAtRiskEvent(user UserID) BaseEvent {
	return NewBaseEvent(EventUserAtRisk, string(user), nil)
}

// NewActionsIssuedEvent is emitted after policy evaluation produces actions.
// Suppressed lists reward types withheld by an active cooldown.
func NewActionsIssuedEvent(user UserID, context string, actionTypes, suppressed []string) BaseEvent {
	return NewBaseEvent(EventActionsIssued, string(user), map[string]interface{}{
		"context":      context,
		"action_types": actionTypes,
		"suppressed":   suppressed,
	})
}

// NewPersonaSwitchedEvent is emitted when the persona resolver changes the
// active persona for a user.
func NewPersonaSwitchedEvent(user UserID, from, to string) BaseEvent {
	return NewBaseEvent(EventPersonaSwitched, string(user), map[string]interface{}{
		"from": from,
		"to":   to,
	})
}
