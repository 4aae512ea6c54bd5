// Package services – BookingService
//
// This file implements the BookingService, the scheduling engine behind the
// appointment API. It validates requested slots against the business-hour
// grid, expands repeat-weekly requests occurrence by occurrence, enforces
// conflict-freedom on start instants, and derives the weekly availability
// view. All persistence goes through the repo package; mutating operations
// run inside a single transaction so a failing occurrence leaves the calendar
// untouched.
//
// Service-level errors (e.g. ErrSlotTaken, ErrAppointmentNotFound) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/repo"
	"github.com/tbourn/go-booking-backend/internal/schedule"
)

// BookingRequest carries the caller-supplied fields for creating or editing
// an appointment. Repeat is only honored on create: a value of N books N+1
// weekly occurrences starting at StartTime's week.
type BookingRequest struct {
	Name      string
	Email     string
	Phone     string
	Reason    string
	StartTime time.Time
	EndTime   time.Time
	Repeat    int
}

// BookingService implements the scheduling engine. It holds no mutable state
// between calls; concurrent conflicting writes are resolved by the
// transaction plus the partial unique index on active start times.
type BookingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// MaxRepeat caps the number of weekly repeats accepted on create.
	MaxRepeat int

	// Now returns the current time; overridable in tests. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

// NewBookingService constructs a BookingService with a one-year repeat cap.
func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{DB: db, MaxRepeat: 52}
}

func (s *BookingService) clock() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create books the requested range and, for Repeat=N, the same weekday range
// in each of the next N weeks. The length is caller-supplied; each occurrence
// only has to sit on the half-hour grid inside business hours. The whole
// batch commits atomically: every occurrence must clear the weekend and
// conflict checks before anything is persisted. Occurrence offsets are whole
// 7-day increments on the UTC instants, so the wall-clock time is preserved
// across the series.
//
// Returns the created appointments in occurrence order.
func (s *BookingService) Create(ctx context.Context, req BookingRequest) ([]domain.Appointment, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, ErrMissingContact
	}

	now := s.clock()
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()

	if start.Before(now) {
		return nil, ErrPastTime
	}
	if !schedule.IsValidSlot(start, end) {
		return nil, ErrInvalidSlot
	}

	repeat := req.Repeat
	if repeat < 0 {
		repeat = 0
	}
	if repeat > s.MaxRepeat {
		return nil, ErrRepeatLimit
	}

	var created []domain.Appointment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staged := make([]domain.Appointment, 0, repeat+1)
		for i := 0; i <= repeat; i++ {
			occStart := start.AddDate(0, 0, 7*i)
			occEnd := end.AddDate(0, 0, 7*i)

			if schedule.IsWeekend(occStart) {
				return fmt.Errorf("occurrence %d: %w", i, ErrWeekendSlot)
			}
			if _, err := repo.FindActiveByStart(ctx, tx, occStart, 0); err == nil {
				return fmt.Errorf("occurrence %d at %s: %w", i, occStart.Format(time.RFC3339), ErrSlotTaken)
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}

			staged = append(staged, domain.Appointment{
				Name:      req.Name,
				Email:     req.Email,
				Phone:     req.Phone,
				Reason:    req.Reason,
				StartTime: occStart,
				EndTime:   occEnd,
				Cancelled: false,
				CreatedAt: now,
			})
		}

		out, err := repo.InsertAppointments(ctx, tx, staged)
		if err != nil {
			// A racing writer may slip between the check and the insert; the
			// partial unique index turns that into a duplicate-key error.
			if isDuplicate(err) {
				return ErrSlotTaken
			}
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Cancel soft-deletes an appointment. The flag never reverts; cancelling an
// already-cancelled record fails with ErrAlreadyCancelled. Returns the
// updated record.
func (s *BookingService) Cancel(ctx context.Context, id uint) (*domain.Appointment, error) {
	var out *domain.Appointment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := repo.FindAppointment(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if a.Cancelled {
			return ErrAlreadyCancelled
		}
		if err := repo.CancelAppointment(ctx, tx, id); err != nil {
			return err
		}
		a.Cancelled = true
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites the contact fields and slot of a non-cancelled
// appointment. The new range must be exactly one slot long, on the grid,
// inside business hours, on a weekday, not in the past, and must not collide
// with another active appointment's start. Id, creation time, and cancelled
// state are never touched.
func (s *BookingService) Update(ctx context.Context, id uint, req BookingRequest) (*domain.Appointment, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, ErrMissingContact
	}

	now := s.clock()
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()

	var out *domain.Appointment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.FindAppointment(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if existing.Cancelled {
			return ErrCancelledImmutable
		}

		if end.Sub(start) != schedule.SlotDuration {
			return ErrInvalidDuration
		}
		if schedule.IsWeekend(start) {
			return ErrWeekendSlot
		}
		if start.Before(now) {
			return ErrPastTime
		}
		if !schedule.IsValidSlot(start, end) {
			return ErrInvalidSlot
		}

		if _, err := repo.FindActiveByStart(ctx, tx, start, id); err == nil {
			return ErrSlotTaken
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		existing.Name = req.Name
		existing.Email = req.Email
		existing.Phone = req.Phone
		existing.Reason = req.Reason
		existing.StartTime = start
		existing.EndTime = end

		if err := repo.SaveAppointment(ctx, tx, existing); err != nil {
			if isDuplicate(err) {
				return ErrSlotTaken
			}
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every appointment regardless of cancelled state.
func (s *BookingService) List(ctx context.Context) ([]domain.Appointment, error) {
	return repo.ListAppointments(ctx, s.DB)
}

// ListPage returns a page of appointments and the total count. Invalid page
// or pageSize values fall back to defaults.
func (s *BookingService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Appointment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountAppointments(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Appointment{}, 0, nil
	}

	items, err := repo.ListAppointmentsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// searchFolder lowercases search needles without locale-specific casing rules,
// so "SMITH" finds "jsmith@example.com" regardless of the server locale.
var searchFolder = cases.Lower(language.Und)

// Search filters appointments by a case-insensitive substring over name,
// email, reason, and phone, and/or by the calendar day containing date. Both
// filters compose with AND; results come back ordered by start time ascending.
func (s *BookingService) Search(ctx context.Context, text string, date *time.Time) ([]domain.Appointment, error) {
	needle := ""
	if t := strings.TrimSpace(text); t != "" {
		needle = searchFolder.String(t)
	}

	var from, to *time.Time
	if date != nil {
		d := date.UTC()
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.AddDate(0, 0, 1)
		from, to = &dayStart, &dayEnd
	}

	return repo.SearchAppointments(ctx, s.DB, needle, from, to)
}

// AvailableSlots derives the free/busy grid for the 7 calendar days starting
// at weekStart (defaulting to now) and returns it together with the raw
// non-cancelled appointments in that window, so a caller can render both the
// grid and the booking details from one query.
func (s *BookingService) AvailableSlots(ctx context.Context, weekStart *time.Time) ([]schedule.Slot, []domain.Appointment, error) {
	now := s.clock()
	ws := now
	if weekStart != nil {
		ws = weekStart.UTC()
	}

	booked, err := repo.ListActiveFrom(ctx, s.DB, ws)
	if err != nil {
		return nil, nil, err
	}

	starts := make([]time.Time, len(booked))
	for i, b := range booked {
		starts[i] = b.StartTime
	}

	return schedule.WeekSlots(ws, now, starts), booked, nil
}

// isDuplicate attempts to detect unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
