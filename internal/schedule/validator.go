// Package schedule holds the pure calendar logic of the booking system: the
// slot validator that decides whether a (start, end) range is an admissible
// business-hour slot, and the derivation of the weekly free/busy grid.
//
// Nothing in this package touches storage or performs timezone conversion;
// callers must pass instants already normalized to UTC. Every function is
// stateless and safe for concurrent use.
package schedule

import "time"

const (
	// OpenHour is the first bookable hour of a business day (inclusive).
	OpenHour = 9
	// CloseHour is the end of the business day; no slot may extend past it.
	CloseHour = 17
	// SlotDuration is the fixed length of a bookable slot.
	SlotDuration = 30 * time.Minute
)

// IsValidSlot reports whether [start, end] describes a range aligned to the
// half-hour grid that begins within business hours and ends no later than
// close of business on the same day. The length is caller-chosen: any number
// of consecutive grid slots is admissible. It checks shape only: no conflict
// or recurrence logic, and no timezone handling beyond what the caller
// already applied.
func IsValidSlot(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
		return false
	}
	if start.Second() != 0 || start.Nanosecond() != 0 ||
		end.Second() != 0 || end.Nanosecond() != 0 {
		return false
	}
	if (start.Minute() != 0 && start.Minute() != 30) ||
		(end.Minute() != 0 && end.Minute() != 30) {
		return false
	}
	if start.Hour() < OpenHour || start.Hour() >= CloseHour {
		return false
	}
	if end.Hour() > CloseHour || (end.Hour() == CloseHour && end.Minute() > 0) {
		return false
	}
	return true
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
