// Package timeutil centralizes time handling for the engine. Every
// computation is done in UTC so telemetry windows, day buckets, and review
// schedules agree across services regardless of server locale.
package timeutil

import "time"

// DayBucketLayout is the canonical day key used to seed deterministic
// generation and to group daily activity.
const DayBucketLayout = "2006-01-02"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// DayBucket formats t as the canonical day key, e.g. "2026-03-02".
func DayBucket(t time.Time) string {
	return t.UTC().Format(DayBucketLayout)
}

// StartOfDay returns midnight UTC of t's day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last nanosecond of t's day in UTC.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// WindowStart returns midnight UTC `days` days before t's day. A 7-day
// telemetry window at WindowStart(t, 7) therefore covers the 7 calendar days
// ending with t's day.
func WindowStart(t time.Time, days int) time.Time {
	return StartOfDay(t).AddDate(0, 0, -(days - 1))
}

// IsSameDay reports whether two instants fall on the same UTC calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	return DayBucket(t1) == DayBucket(t2)
}

// DaysBetween returns the number of whole calendar days from t1's day to
// t2's day. Negative when t2 is earlier.
func DaysBetween(t1, t2 time.Time) int {
	return int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
}

// DaysSince returns how many calendar days ago t was, relative to now.
// Zero means today; never negative for past times.
func DaysSince(t, now time.Time) int {
	d := DaysBetween(t, now)
	if d < 0 {
		return 0
	}
	return d
}
