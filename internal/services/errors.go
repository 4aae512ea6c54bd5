// Package services defines the business logic for appointment scheduling and
// account authentication. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers with errors.Is.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Booking-related errors.
var (
	// ErrPastTime is returned when a booking or edit targets a start time
	// earlier than the current time.
	ErrPastTime = errors.New("cannot book a past time")

	// ErrInvalidSlot is returned when the requested range is not a half-hour
	// aligned slot inside business hours.
	ErrInvalidSlot = errors.New("outside business hours or invalid slot")

	// ErrWeekendSlot is returned when an occurrence falls on a Saturday or
	// Sunday.
	ErrWeekendSlot = errors.New("appointments cannot fall on weekends")

	// ErrInvalidDuration is returned when an edit does not keep the exact
	// 30-minute slot length.
	ErrInvalidDuration = errors.New("appointment duration must be exactly 30 minutes")

	// ErrMissingContact is returned when the required name or email field is
	// empty.
	ErrMissingContact = errors.New("name and email are required")

	// ErrRepeatLimit is returned when a create request asks for more weekly
	// repeats than the configured maximum.
	ErrRepeatLimit = errors.New("too many weekly repeats")

	// ErrSlotTaken indicates that a non-cancelled appointment already occupies
	// the requested start time.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrAppointmentNotFound indicates that the referenced appointment id does
	// not exist.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAlreadyCancelled is returned when cancelling an appointment that is
	// already cancelled.
	ErrAlreadyCancelled = errors.New("appointment already cancelled")

	// ErrCancelledImmutable is returned when editing a cancelled appointment;
	// cancelled records are immutable.
	ErrCancelledImmutable = errors.New("cannot edit a cancelled appointment")
)

// Auth-related errors.
var (
	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike, so login failures do not reveal which one it was.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrWeakPassword is returned when a registration password is shorter
	// than the minimum length.
	ErrWeakPassword = errors.New("password must be at least 6 characters long")

	// ErrMissingField is returned when a required registration field is empty.
	ErrMissingField = errors.New("name, email and password are required")
)
