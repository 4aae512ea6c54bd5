// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

// AppointmentsStats returns aggregate metadata for the appointments table:
// the total number of rows (any state) and the greatest UpdatedAt among them.
// When the table is empty the returned count is 0 and maxUpdatedAt is nil.
//
// GORM bumps updated_at on every insert and in-place edit, so the pair
// changes whenever a row is added or modified; together with the cancelled
// count it forms a cheap freshness token for list responses.
func AppointmentsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Appointment{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// CancelledCount returns the number of cancelled rows. List responses fold it
// into the ETag so a soft-cancel (which adds no row) still invalidates caches.
func CancelledCount(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("cancelled = ?", true).
		Count(&n).Error
	return n, err
}
