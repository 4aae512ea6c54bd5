// Package domain defines the persistence models for appointments and users.
// These types are mapped with GORM and form the core data layer of the
// booking application.
package domain

import "time"

// Appointment represents one booked occurrence on the shared calendar. A
// repeat-weekly booking produces one row per occurrence.
//
// Fields:
//   - ID: auto-incrementing primary key assigned by the database on insert.
//   - Name / Email: caller-supplied contact details (required).
//   - Phone / Reason: optional contact and purpose strings.
//   - StartTime / EndTime: slot boundaries, always stored in UTC. The partial
//     unique index on StartTime covers non-cancelled rows only, so two active
//     bookings can never share a start instant while a cancelled slot can be
//     re-booked.
//   - Cancelled: soft-cancel marker. Once true it never reverts; cancelled
//     rows stay addressable by id for history but are excluded from conflict
//     checks and availability.
//   - CreatedAt: record creation timestamp, set once by the repository.
//   - UpdatedAt: maintained by GORM on every write; list freshness tokens
//     derive from its maximum so in-place edits invalidate cached responses.
type Appointment struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"       gorm:"type:varchar(120);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(254);not null;index"`
	Phone     string    `json:"phone,omitempty"  gorm:"type:varchar(32)"`
	Reason    string    `json:"reason,omitempty" gorm:"type:varchar(200)"`
	StartTime time.Time `json:"start_time" gorm:"not null;uniqueIndex:ux_appointments_active_start,where:cancelled = 0"`
	EndTime   time.Time `json:"end_time"   gorm:"not null"`
	Cancelled bool      `json:"cancelled"  gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// User represents a registered account able to authenticate and manage
// appointments. The password is stored as a bcrypt hash and never serialized.
type User struct {
	ID           string    `json:"id"    gorm:"type:char(36);primaryKey"`
	FullName     string    `json:"name"  gorm:"type:varchar(120);not null"`
	Email        string    `json:"email" gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"     gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
