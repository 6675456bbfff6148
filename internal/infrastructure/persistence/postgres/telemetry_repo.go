package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
	"github.com/brightpath-labs/brightpath-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEMETRY REPOSITORY
// Append-only activity records plus the windowed aggregation the scorer
// consumes. Window math that needs ordering over a short recent slice
// (streaks, slowdown) happens in Go; the rest is SQL aggregates.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// recentAnswerSlice bounds the answer history pulled for streak and
	// slowdown computation.
	recentAnswerSlice = 40

	// slowdownBaselineSplit is how many of the most recent answers form the
	// "now" side of the slowdown comparison; the rest of the slice is the
	// baseline.
	slowdownBaselineSplit = 10

	// abortThreshold is how old a session without an end must be before it
	// counts as aborted.
	abortThreshold = 20 * time.Minute

	// streakLookbackDays bounds the day-bucket scan for streak computation.
	streakLookbackDays = 30
)

// TelemetryRepository implements behavior.TelemetryReader and
// behavior.TelemetryWriter on the answer_events, sessions, and
// task_outcomes tables.
type TelemetryRepository struct {
	conn *Connection
}

// NewTelemetryRepository creates the repository.
func NewTelemetryRepository(conn *Connection) *TelemetryRepository {
	return &TelemetryRepository{conn: conn}
}

// AppendAnswer records a single answer event.
func (r *TelemetryRepository) AppendAnswer(ctx context.Context, event behavior.AnswerEvent) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO answer_events
			(user_id, skill_id, question_ref, difficulty, result, mastery_delta, duration_ms, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(event.UserID), string(event.SkillID), event.QuestionRef,
		string(event.Difficulty), string(event.Result),
		event.MasteryDelta, event.DurationMs, event.AnsweredAt)
	if err != nil {
		return fmt.Errorf("telemetry: append answer: %w", err)
	}
	return nil
}

// RecordSessionStart opens a session row and returns its ID.
func (r *TelemetryRepository) RecordSessionStart(ctx context.Context, user shared.UserID, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := r.conn.Exec(ctx, `
		INSERT INTO sessions (id, user_id, started_at) VALUES ($1, $2, $3)
	`, id, string(user), startedAt)
	if err != nil {
		return "", fmt.Errorf("telemetry: record session start: %w", err)
	}
	return id, nil
}

// RecordSessionEnd closes a session row with its totals.
func (r *TelemetryRepository) RecordSessionEnd(ctx context.Context, sessionID string, endedAt time.Time, xpEarned, answers int) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE sessions SET ended_at = $2, xp_earned = $3, answers_count = $4 WHERE id = $1
	`, sessionID, endedAt, xpEarned, answers)
	if err != nil {
		return fmt.Errorf("telemetry: record session end: %w", err)
	}
	return nil
}

// RecordTaskOutcome records a parent approval or rejection of a task.
func (r *TelemetryRepository) RecordTaskOutcome(ctx context.Context, user shared.UserID, approved bool, occurredAt time.Time) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO task_outcomes (user_id, approved, occurred_at) VALUES ($1, $2, $3)
	`, string(user), approved, occurredAt)
	if err != nil {
		return fmt.Errorf("telemetry: record task outcome: %w", err)
	}
	return nil
}

// Snapshot aggregates the user's activity windows relative to now.
func (r *TelemetryRepository) Snapshot(ctx context.Context, user shared.UserID, now time.Time) (*behavior.TelemetrySnapshot, error) {
	snap := &behavior.TelemetrySnapshot{
		UserID:      user,
		CollectedAt: now,
	}

	week := now.Add(-7 * 24 * time.Hour)
	prevWeek := now.Add(-14 * 24 * time.Hour)
	twoWeeks := now.Add(-14 * 24 * time.Hour)
	fourWeeks := now.Add(-28 * 24 * time.Hour)

	if err := r.loadSessionWindows(ctx, snap, string(user), week, prevWeek, now); err != nil {
		return nil, err
	}
	if err := r.loadAnswerSlice(ctx, snap, string(user)); err != nil {
		return nil, err
	}
	if err := r.loadStreak(ctx, snap, string(user), now); err != nil {
		return nil, err
	}
	if err := r.loadMasteryWindows(ctx, snap, string(user), twoWeeks, fourWeeks, now); err != nil {
		return nil, err
	}
	if err := r.loadTaskOutcomes(ctx, snap, string(user), twoWeeks); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *TelemetryRepository) loadSessionWindows(ctx context.Context, snap *behavior.TelemetrySnapshot, user string, week, prevWeek, now time.Time) error {
	row := r.conn.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(xp_earned) FILTER (WHERE started_at >= $2), 0),
			COALESCE(SUM(xp_earned) FILTER (WHERE started_at >= $3 AND started_at < $2), 0),
			COUNT(*) FILTER (WHERE started_at >= $2),
			COUNT(DISTINCT DATE(started_at)) FILTER (WHERE started_at >= $2),
			COUNT(*) FILTER (WHERE started_at >= $2 AND ended_at IS NULL AND started_at < $4),
			COUNT(*) FILTER (WHERE started_at >= $2 AND started_at < $4)
		FROM sessions WHERE user_id = $1
	`, user, week, prevWeek, now.Add(-abortThreshold))

	var aborted, settled int
	if err := row.Scan(&snap.XP7, &snap.XPPrev7, &snap.Sessions7, &snap.ActiveDays7, &aborted, &settled); err != nil {
		return fmt.Errorf("telemetry: session windows: %w", err)
	}
	if settled > 0 {
		snap.AbortRatio = float64(aborted) / float64(settled)
	}
	return nil
}

// loadAnswerSlice computes wrong rate, current streaks, and slowdown over
// the most recent answers, newest first.
func (r *TelemetryRepository) loadAnswerSlice(ctx context.Context, snap *behavior.TelemetrySnapshot, user string) error {
	rows, err := r.conn.Query(ctx, `
		SELECT result, duration_ms, answered_at
		FROM answer_events
		WHERE user_id = $1
		ORDER BY answered_at DESC
		LIMIT $2
	`, user, recentAnswerSlice)
	if err != nil {
		return fmt.Errorf("telemetry: answer slice: %w", err)
	}
	defer rows.Close()

	type record struct {
		result     shared.AnswerResult
		durationMs int64
		answeredAt time.Time
	}
	var slice []record
	for rows.Next() {
		var rec record
		var result string
		if err := rows.Scan(&result, &rec.durationMs, &rec.answeredAt); err != nil {
			return fmt.Errorf("telemetry: scan answer: %w", err)
		}
		rec.result = shared.AnswerResult(result)
		slice = append(slice, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(slice) == 0 {
		return nil
	}

	if snap.LastActiveAt == nil || slice[0].answeredAt.After(*snap.LastActiveAt) {
		t := slice[0].answeredAt
		snap.LastActiveAt = &t
	}

	// Wrong rate over graded answers only.
	var graded, wrong int
	for _, rec := range slice {
		switch rec.result {
		case shared.ResultCorrect:
			graded++
		case shared.ResultWrong:
			graded++
			wrong++
		}
	}
	if graded > 0 {
		snap.WrongRate = float64(wrong) / float64(graded)
	}

	// Current exclusive streaks, walking from the newest answer. Skips do
	// not break a run.
	for _, rec := range slice {
		if rec.result == shared.ResultSkipped {
			continue
		}
		if rec.result == shared.ResultCorrect {
			if snap.StreakWrong > 0 {
				break
			}
			snap.StreakCorrect++
		} else {
			if snap.StreakCorrect > 0 {
				break
			}
			snap.StreakWrong++
		}
	}

	// Slowdown: recent answers taking longer than the user's own baseline.
	split := slowdownBaselineSplit
	if split > len(slice) {
		split = len(slice)
	}
	recentAvg := avgDuration(slice[:split], func(rec record) int64 { return rec.durationMs })
	baselineAvg := avgDuration(slice[split:], func(rec record) int64 { return rec.durationMs })
	if baselineAvg > 0 && recentAvg > baselineAvg {
		snap.SlowdownRatio = shared.Clamp01(recentAvg/baselineAvg - 1)
	}
	return nil
}

func avgDuration[T any](recs []T, pick func(T) int64) float64 {
	if len(recs) == 0 {
		return 0
	}
	var sum int64
	for _, rec := range recs {
		sum += pick(rec)
	}
	return float64(sum) / float64(len(recs))
}

// loadStreak derives the consecutive-active-day run from answer day buckets.
func (r *TelemetryRepository) loadStreak(ctx context.Context, snap *behavior.TelemetrySnapshot, user string, now time.Time) error {
	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT DATE(answered_at) AS day
		FROM answer_events
		WHERE user_id = $1 AND answered_at >= $2
		ORDER BY day DESC
	`, user, timeutil.WindowStart(now, streakLookbackDays))
	if err != nil {
		return fmt.Errorf("telemetry: streak days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return fmt.Errorf("telemetry: scan day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(days) == 0 {
		return nil
	}

	today := timeutil.StartOfDay(now)
	gap := timeutil.DaysBetween(days[0], today)

	// Count the run ending at the most recent active day.
	run := 1
	for i := 1; i < len(days); i++ {
		if timeutil.DaysBetween(days[i], days[i-1]) != 1 {
			break
		}
		run++
	}

	switch {
	case gap <= 1:
		// Run is alive: it ends today or yesterday.
		snap.StreakDays = run
	case run >= 2:
		// A real run existed and then activity stopped.
		snap.StreakBroken = true
	}
	return nil
}

// loadMasteryWindows compares per-answer mastery movement between the
// current 14-day window and the 14 days before it.
func (r *TelemetryRepository) loadMasteryWindows(ctx context.Context, snap *behavior.TelemetrySnapshot, user string, twoWeeks, fourWeeks, now time.Time) error {
	row := r.conn.QueryRow(ctx, `
		SELECT
			COALESCE(AVG(mastery_delta) FILTER (WHERE answered_at >= $2), 0),
			COALESCE(AVG(mastery_delta) FILTER (WHERE answered_at >= $3 AND answered_at < $2), 0),
			MAX(answered_at)
		FROM answer_events WHERE user_id = $1
	`, user, twoWeeks, fourWeeks)

	var cur, prev float64
	var lastAnswered *time.Time
	if err := row.Scan(&cur, &prev, &lastAnswered); err != nil {
		return fmt.Errorf("telemetry: mastery windows: %w", err)
	}
	snap.MasteryDelta14 = cur - prev
	if lastAnswered != nil && (snap.LastActiveAt == nil || lastAnswered.After(*snap.LastActiveAt)) {
		snap.LastActiveAt = lastAnswered
	}
	return nil
}

func (r *TelemetryRepository) loadTaskOutcomes(ctx context.Context, snap *behavior.TelemetrySnapshot, user string, since time.Time) error {
	row := r.conn.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE approved)
		FROM task_outcomes WHERE user_id = $1 AND occurred_at >= $2
	`, user, since)

	var total, approved int
	if err := row.Scan(&total, &approved); err != nil {
		return fmt.Errorf("telemetry: task outcomes: %w", err)
	}
	if total > 0 {
		snap.TaskApprovalRate = float64(approved) / float64(total)
		snap.TaskRejectionRate = float64(total-approved) / float64(total)
	}
	return nil
}
