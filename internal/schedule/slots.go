package schedule

import "time"

// Slot describes one candidate 30-minute window in a displayed week. It is a
// derived value, recomputed on every query and never persisted.
type Slot struct {
	// Date is the calendar day of the slot (YYYY-MM-DD, reference timezone).
	Date string `json:"date"`
	// Time is the HH:MM label of the slot start.
	Time string `json:"time"`
	// StartsAt is the exact instant the slot begins.
	StartsAt time.Time `json:"datetime_slot"`
	// Booked is true when the slot start coincides with an active booking or
	// the instant is already in the past relative to the query's "now".
	Booked bool `json:"booked"`
}

// WeekSlots enumerates every half-hour business slot for the 7 calendar days
// starting at weekStart, skipping weekends. A slot is marked booked when its
// start instant is before now or matches one of bookedStarts.
//
// All inputs are normalized to UTC; the grid itself is built on UTC midnights
// so a weekStart given mid-day still yields full-day columns.
func WeekSlots(weekStart, now time.Time, bookedStarts []time.Time) []Slot {
	weekStart = weekStart.UTC()
	now = now.UTC()

	taken := make(map[int64]struct{}, len(bookedStarts))
	for _, s := range bookedStarts {
		taken[s.UTC().Unix()] = struct{}{}
	}

	var out []Slot
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		if IsWeekend(day) {
			continue
		}
		open := time.Date(day.Year(), day.Month(), day.Day(), OpenHour, 0, 0, 0, time.UTC)
		close := time.Date(day.Year(), day.Month(), day.Day(), CloseHour, 0, 0, 0, time.UTC)

		for t := open; t.Before(close); t = t.Add(SlotDuration) {
			_, busy := taken[t.Unix()]
			out = append(out, Slot{
				Date:     t.Format("2006-01-02"),
				Time:     t.Format("15:04"),
				StartsAt: t,
				Booked:   busy || t.Before(now),
			})
		}
	}
	return out
}
