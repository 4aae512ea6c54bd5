// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The constants form a stable, machine-readable taxonomy that
// supplements human-readable messages: generic codes mirror common HTTP
// status semantics, while domain-specific codes convey scheduling outcomes
// that a status alone cannot (e.g. past_time vs. weekend both map to 400).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation       = "validation_failed"
	ErrCodePastTime         = "past_time"
	ErrCodeWeekend          = "weekend"
	ErrCodeAlreadyCancelled = "already_cancelled"
	ErrCodeCancelledLocked  = "cancelled_locked"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
