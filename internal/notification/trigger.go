package notification

import "time"

// DefaultFireHour is the local hour scheduled reminders are aligned to.
const DefaultFireHour = 9

// TriggerAt computes the instant a reminder for target should fire.
//
// The raw candidate is target minus lead. A candidate at or before now
// is already stale and yields no trigger. Otherwise the result is
// fireHour o'clock on the candidate's calendar date in loc. The
// normalized instant may land before now even though the raw candidate
// was ahead of it; callers must accept such a value so the reminder
// fires immediately instead of never.
//
// A nil location or an hour outside 0..23 yields no trigger.
func TriggerAt(target time.Time, lead time.Duration, now time.Time, loc *time.Location, fireHour int) (time.Time, bool) {
	if loc == nil || fireHour < 0 || fireHour > 23 {
		return time.Time{}, false
	}

	candidate := target.Add(-lead)
	if !candidate.After(now) {
		return time.Time{}, false
	}

	year, month, day := candidate.In(loc).Date()
	return time.Date(year, month, day, fireHour, 0, 0, 0, loc), true
}
