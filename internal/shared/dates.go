package shared

import "time"

// StartOfDay truncates t to its calendar date at midnight UTC. Ledger dates
// (entry, invoice, due and payment dates) are compared at day granularity.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsPastDue reports whether due lies strictly before the calendar day of today.
func IsPastDue(due, today time.Time) bool {
	return StartOfDay(due).Before(StartOfDay(today))
}
