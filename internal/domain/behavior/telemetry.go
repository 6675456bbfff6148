package behavior

import (
	"context"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEMETRY
// ══════════════════════════════════════════════════════════════════════════════

// AnswerEvent is one recorded answer. Appended on every submission so the
// scorer can aggregate wrong rates, streaks, and slowdown over a recent slice.
type AnswerEvent struct {
	UserID       shared.UserID
	SkillID      shared.SkillID
	QuestionRef  string
	Difficulty   shared.Difficulty
	Result       shared.AnswerResult
	MasteryDelta float64
	DurationMs   int64
	AnsweredAt   time.Time
}

// TelemetrySnapshot is the pre-aggregated window view the scorer consumes.
// Ratios are already normalized to [0,1]; counts and XP are raw.
type TelemetrySnapshot struct {
	UserID      shared.UserID
	CollectedAt time.Time

	// 7-day activity window, and the 7 days before it for trend deltas.
	XP7         int
	XPPrev7     int
	ActiveDays7 int
	Sessions7   int

	// StreakDays is the current run of consecutive active days ending today
	// or yesterday. StreakBroken is set when a previously positive run ended
	// without activity.
	StreakDays   int
	StreakBroken bool

	// Answer-history aggregates over the most recent ~40 records.
	WrongRate     float64
	SlowdownRatio float64
	StreakCorrect int
	StreakWrong   int

	// AbortRatio is the share of recent sessions started more than 20
	// minutes ago that never recorded an end.
	AbortRatio float64

	// MasteryDelta14 is the average-mastery difference between the current
	// 14-day window and the 14 days before it.
	MasteryDelta14 float64

	TaskApprovalRate  float64
	TaskRejectionRate float64

	LastActiveAt *time.Time
}

// DaysSinceActive returns whole days since the last activity, relative to
// now. A user with no recorded activity counts as maximally inactive.
func (t *TelemetrySnapshot) DaysSinceActive(now time.Time) float64 {
	if t.LastActiveAt == nil {
		return 365
	}
	d := now.Sub(*t.LastActiveAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// TelemetryReader provides the aggregated activity windows for one user.
type TelemetryReader interface {
	Snapshot(ctx context.Context, user shared.UserID, now time.Time) (*TelemetrySnapshot, error)
}

// TelemetryWriter appends activity records as they happen.
type TelemetryWriter interface {
	AppendAnswer(ctx context.Context, event AnswerEvent) error
}

// ActivityWriter records the session and task activity the window aggregates
// are built from. Sessions left open past the abort threshold count as
// aborted.
type ActivityWriter interface {
	RecordSessionStart(ctx context.Context, user shared.UserID, startedAt time.Time) (string, error)
	RecordSessionEnd(ctx context.Context, sessionID string, endedAt time.Time, xpEarned, answers int) error
	RecordTaskOutcome(ctx context.Context, user shared.UserID, approved bool, occurredAt time.Time) error
}
