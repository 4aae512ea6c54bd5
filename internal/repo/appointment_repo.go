// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Appointment
// model.
//
// All functions accept a *gorm.DB handle, making them safe for use within
// transactions or connection-scoped operations. They follow the "thin
// repository" approach: no business logic, only CRUD persistence and query
// composition. Slot admissibility, conflict policy, and recurrence expansion
// live in the service layer.
//
// Error semantics:
//   - When an appointment is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. Unique-index violations on the active
//     start-time column are mapped to domain conflicts by the service.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service layer
// and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// FindAppointment fetches a single appointment by id, regardless of its
// cancelled state. Returns ErrNotFound when missing.
func FindAppointment(ctx context.Context, db *gorm.DB, id uint) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActiveByStart returns the non-cancelled appointment whose start_time
// equals start exactly, or ErrNotFound. When excludeID is non-zero that row is
// ignored, which lets an update re-save its own slot.
func FindActiveByStart(ctx context.Context, db *gorm.DB, start time.Time, excludeID uint) (*domain.Appointment, error) {
	q := db.WithContext(ctx).
		Where("start_time = ? AND cancelled = ?", start.UTC(), false)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var a domain.Appointment
	if err := q.First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointments returns every appointment regardless of cancelled state,
// ordered by start time ascending for stable output.
func ListAppointments(ctx context.Context, db *gorm.DB) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Order("start_time asc, id asc").
		Find(&out).Error
	return out, err
}

// CountAppointments returns the total number of appointment rows (any state).
func CountAppointments(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Appointment{}).Count(&total).Error
	return total, err
}

// ListAppointmentsPage returns a paginated slice ordered by start time
// ascending. The caller computes offset and limit (e.g. (page-1)*pageSize).
func ListAppointmentsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Order("start_time asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListActiveFrom returns all non-cancelled appointments whose start_time is at
// or after the given instant, ordered by start time ascending. Used to derive
// the weekly availability grid.
func ListActiveFrom(ctx context.Context, db *gorm.DB, from time.Time) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Where("start_time >= ? AND cancelled = ?", from.UTC(), false).
		Order("start_time asc").
		Find(&out).Error
	return out, err
}

// SearchAppointments filters appointments by an optional lowercase substring
// needle (matched against name, email, reason, and phone) and an optional
// [from, to) start-time window, ordered by start time ascending. Both filters
// compose with AND; empty needle or nil bounds disable the respective filter.
func SearchAppointments(ctx context.Context, db *gorm.DB, needle string, from, to *time.Time) ([]domain.Appointment, error) {
	q := db.WithContext(ctx).Model(&domain.Appointment{})
	if needle != "" {
		like := "%" + needle + "%"
		q = q.Where(
			"lower(name) LIKE ? OR lower(email) LIKE ? OR lower(reason) LIKE ? OR lower(phone) LIKE ?",
			like, like, like, like,
		)
	}
	if from != nil {
		q = q.Where("start_time >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where("start_time < ?", to.UTC())
	}
	var out []domain.Appointment
	err := q.Order("start_time asc, id asc").Find(&out).Error
	return out, err
}

// InsertAppointments persists a batch of staged appointments in one statement
// and returns them with database-assigned ids, in input order. Callers run
// this inside a transaction so a failing occurrence aborts the whole batch.
func InsertAppointments(ctx context.Context, db *gorm.DB, appts []domain.Appointment) ([]domain.Appointment, error) {
	if len(appts) == 0 {
		return []domain.Appointment{}, nil
	}
	if err := db.WithContext(ctx).Create(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

// SaveAppointment overwrites all fields of an existing appointment row.
// Returns ErrNotFound when the row vanished underneath the caller.
func SaveAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"name":       a.Name,
			"email":      a.Email,
			"phone":      a.Phone,
			"reason":     a.Reason,
			"start_time": a.StartTime,
			"end_time":   a.EndTime,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CancelAppointment flags the given row as cancelled. It is the only mutation
// path that sets the flag, and nothing ever clears it. Returns ErrNotFound
// when the row does not exist.
func CancelAppointment(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Update("cancelled", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
