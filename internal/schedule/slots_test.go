package schedule

import (
	"testing"
	"time"
)

func TestWeekSlots_FullWeekGrid(t *testing.T) {
	// Week starting on a Monday, queried from before the week begins.
	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	now := weekStart.AddDate(0, 0, -3)

	slots := WeekSlots(weekStart, now, nil)

	// 5 weekdays x 16 half-hour slots between 09:00 and 17:00.
	if len(slots) != 80 {
		t.Fatalf("expected 80 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Booked {
			t.Fatalf("slot %s %s unexpectedly booked", s.Date, s.Time)
		}
		if IsWeekend(s.StartsAt) {
			t.Fatalf("weekend slot leaked into grid: %s", s.Date)
		}
	}
	if slots[0].Time != "09:00" || slots[15].Time != "16:30" {
		t.Fatalf("day boundaries wrong: first=%s last=%s", slots[0].Time, slots[15].Time)
	}
}

func TestWeekSlots_MarksBookedStart(t *testing.T) {
	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	booked := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC) // Tuesday 10:00

	slots := WeekSlots(weekStart, weekStart, []time.Time{booked})

	var busy int
	for _, s := range slots {
		if !s.Booked {
			continue
		}
		busy++
		if !s.StartsAt.Equal(booked) {
			t.Fatalf("unexpected busy slot at %s", s.StartsAt)
		}
	}
	if busy != 1 {
		t.Fatalf("expected exactly one busy slot, got %d", busy)
	}
}

func TestWeekSlots_PastSlotsAreBooked(t *testing.T) {
	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 7, 10, 15, 0, 0, time.UTC) // mid-Monday morning

	slots := WeekSlots(weekStart, now, nil)

	for _, s := range slots {
		wantBooked := s.StartsAt.Before(now)
		if s.Booked != wantBooked {
			t.Fatalf("slot %s %s booked=%v, want %v", s.Date, s.Time, s.Booked, wantBooked)
		}
	}
	// Sanity: Monday 09:00, 09:30 and 10:00 are gone, 10:30 is free.
	if !slots[0].Booked || !slots[2].Booked || slots[3].Booked {
		t.Fatalf("past cutoff misplaced: %+v %+v", slots[2], slots[3])
	}
}

func TestWeekSlots_MidweekStartSkipsWeekend(t *testing.T) {
	// Week starting Thursday spans Thu, Fri, (Sat, Sun skipped), Mon, Tue, Wed.
	weekStart := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	slots := WeekSlots(weekStart, weekStart, nil)

	if len(slots) != 80 {
		t.Fatalf("expected 80 slots over 5 weekdays, got %d", len(slots))
	}
	days := map[string]bool{}
	for _, s := range slots {
		days[s.Date] = true
	}
	if days["2026-09-12"] || days["2026-09-13"] {
		t.Fatalf("weekend days present in grid: %v", days)
	}
}
