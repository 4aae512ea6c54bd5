// Appointment HTTP handlers.
//
// This file exposes the REST endpoints for appointment resources:
//   - GET    /appointments            (list; optional pagination, ETag support)
//   - POST   /appointments            (create, repeat-aware, idempotent retries)
//   - GET    /appointments/available  (weekly free/busy grid)
//   - GET    /appointments/search     (text/date filter)
//   - PATCH  /appointments/{id}       (edit)
//   - DELETE /appointments/{id}       (cancel, soft)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate typed service errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/http/middleware"
	"github.com/tbourn/go-booking-backend/internal/repo"
	"github.com/tbourn/go-booking-backend/internal/schedule"
	"github.com/tbourn/go-booking-backend/internal/services"
	"github.com/tbourn/go-booking-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BookingService defines the scheduling operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation.
type BookingService interface {
	// Create books a slot and its weekly repeats atomically.
	Create(ctx context.Context, req services.BookingRequest) ([]domain.Appointment, error)
	// Cancel soft-deletes an appointment and returns the updated record.
	Cancel(ctx context.Context, id uint) (*domain.Appointment, error)
	// Update edits a non-cancelled appointment in place.
	Update(ctx context.Context, id uint, req services.BookingRequest) (*domain.Appointment, error)
	// List returns every appointment regardless of state.
	List(ctx context.Context) ([]domain.Appointment, error)
	// ListPage returns a page of appointments and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Appointment, int64, error)
	// Search filters by case-insensitive substring and/or calendar day.
	Search(ctx context.Context, text string, date *time.Time) ([]domain.Appointment, error)
	// AvailableSlots derives the weekly grid plus the booked rows behind it.
	AvailableSlots(ctx context.Context, weekStart *time.Time) ([]schedule.Slot, []domain.Appointment, error)
}

// AuthService defines the account operations consumed by HTTP handlers.
type AuthService interface {
	// Register creates an account with a bcrypt-hashed password.
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	// Login verifies credentials and returns a signed bearer token.
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for appointments and authentication.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	bookingSvc BookingService
	authSvc    AuthService

	// IdempotencyTTL bounds how long a stored Idempotency-Key replay is valid.
	IdempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(bookingSvc BookingService, authSvc AuthService, idemTTL time.Duration) *Handlers {
	return &Handlers{bookingSvc: bookingSvc, authSvc: authSvc, IdempotencyTTL: idemTTL}
}

// db exposes the underlying GORM handle when the concrete BookingService is
// in use; ETag stats and idempotency records read it directly (best effort).
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.bookingSvc.(*services.BookingService); ok {
		return svc.DB
	}
	return nil
}

//
// DTOs
//

// AppointmentRequest is the JSON payload for creating or editing an
// appointment. Repeat is only honored on create.
type AppointmentRequest struct {
	Name      string    `json:"name"       binding:"required,min=1,max=120"  example:"Jane Smith"`
	Email     string    `json:"email"      binding:"required,email"          example:"jsmith@example.com"`
	Phone     string    `json:"phone"      binding:"omitempty,max=32"        example:"+44 20 7946 0958"`
	Reason    string    `json:"reason"     binding:"omitempty,max=200"       example:"Initial consultation"`
	StartTime time.Time `json:"start_time" binding:"required"               example:"2026-09-07T10:00:00Z"`
	EndTime   time.Time `json:"end_time"   binding:"required"               example:"2026-09-07T10:30:00Z"`
	// Repeat books the same weekday slot in each of the next N weeks.
	Repeat int `json:"repeat" binding:"omitempty,min=0" example:"2"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListAppointmentsResponse wraps a page of appointments and pagination
// information; it is only returned when the caller asked for a page.
type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
	Pagination   Pagination           `json:"pagination"`
}

// AvailableSlotsResponse pairs the weekly grid with the booked rows behind
// it, so a client can render free/busy and details without a second query.
type AvailableSlotsResponse struct {
	AvailableSlots []schedule.Slot      `json:"available_slots"`
	BookedSlots    []domain.Appointment `json:"booked_slots"`
}

//
// Helpers
//

func (r AppointmentRequest) booking() services.BookingRequest {
	return services.BookingRequest{
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Reason:    r.Reason,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Repeat:    r.Repeat,
	}
}

// failBooking translates booking service sentinels into HTTP results.
func failBooking(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPastTime):
		fail(c, http.StatusBadRequest, ErrCodePastTime, err.Error())
	case errors.Is(err, services.ErrWeekendSlot):
		fail(c, http.StatusBadRequest, ErrCodeWeekend, err.Error())
	case errors.Is(err, services.ErrInvalidSlot),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrMissingContact),
		errors.Is(err, services.ErrRepeatLimit):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrSlotTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrAppointmentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyCancelled):
		fail(c, http.StatusBadRequest, ErrCodeAlreadyCancelled, err.Error())
	case errors.Is(err, services.ErrCancelledImmutable):
		fail(c, http.StatusBadRequest, ErrCodeCancelledLocked, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// appointmentID parses the :id path parameter. A zero return means the
// request was already answered with 400.
func appointmentID(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment id must be a positive integer")
		return 0
	}
	return uint(id)
}

// parseDay accepts a YYYY-MM-DD or RFC 3339 value and returns the instant in
// UTC.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

//
// Handlers
//

// CreateAppointment godoc
// @ID          createAppointment
// @Summary     Book an appointment
// @Description Books a grid-aligned business-hour range; repeat=N books the same range weekly for N further weeks, all-or-nothing. Supports Idempotency-Key retries.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Retry-safe client key"
// @Param       body             body    handlers.AppointmentRequest  true  "Booking payload"
//
// @Success     201  {array}   domain.Appointment
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     409  {object}  handlers.ErrorResponse "Slot already booked"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /appointments [post]
func (h *Handlers) CreateAppointment(c *gin.Context) {
	ctx := c.Request.Context()

	// Serve idempotent replays from the stored record instead of re-booking.
	if middleware.IsReplay(c) {
		if appt := h.replayAppointment(c); appt != nil {
			ok(c, http.StatusOK, []domain.Appointment{*appt})
			return
		}
	}

	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	created, err := h.bookingSvc.Create(ctx, req.booking())
	if err != nil {
		failBooking(c, err)
		return
	}

	h.storeIdempotency(c, created)

	ok(c, http.StatusCreated, created)
}

// replayAppointment loads the appointment recorded for this request's
// (user, Idempotency-Key) tuple. Best effort: any miss falls through to a
// normal create, which the conflict check still keeps safe.
func (h *Handlers) replayAppointment(c *gin.Context) *domain.Appointment {
	db := h.db()
	if db == nil {
		return nil
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	uid, okUID := middleware.UserID(c)
	if !okKey || !okUID {
		return nil
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), db, uid, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil
	}
	appt, err := repo.FindAppointment(c.Request.Context(), db, rec.AppointmentID)
	if err != nil {
		return nil
	}
	return appt
}

// storeIdempotency records the first created occurrence under the request's
// (user, Idempotency-Key) tuple so later retries replay instead of re-book.
func (h *Handlers) storeIdempotency(c *gin.Context, created []domain.Appointment) {
	db := h.db()
	if db == nil || len(created) == 0 {
		return
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	uid, okUID := middleware.UserID(c)
	if !okKey || !okUID {
		return
	}
	// Losing the race to a concurrent retry is fine; the record exists either way.
	_, _ = repo.CreateIdempotency(c.Request.Context(), db, uid, key,
		created[0].ID, http.StatusCreated, h.IdempotencyTTL)
}

// ListAppointments godoc
// @ID          listAppointments
// @Summary     List appointments
// @Description Returns all appointments regardless of state. When page or page_size is given, returns a paginated envelope instead. Supports weak ETag via If-None-Match.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100)
//
// @Success     200  {array}   domain.Appointment
// @Header      200  {string}  ETag "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /appointments [get]
func (h *Handlers) ListAppointments(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort). Inserts and in-place edits both bump the
	// newest updated_at; a cancel is covered by the cancelled count.
	if db := h.db(); db != nil {
		count, maxTS, err := repo.AppointmentsStats(ctx, db)
		if err == nil {
			cancelled, cErr := repo.CancelledCount(ctx, db)
			if cErr == nil {
				// Nanosecond resolution so edits landing in the same second
				// still produce a fresh tag.
				var ts int64
				if maxTS != nil {
					ts = maxTS.UnixNano()
				}
				etag := fmt.Sprintf(`W/"appts:%d:%d:%d"`, count, cancelled, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	if c.Query("page") == "" && c.Query("page_size") == "" {
		items, err := h.bookingSvc.List(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		ok(c, http.StatusOK, items)
		return
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.bookingSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListAppointmentsResponse{
		Appointments: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// SearchAppointments godoc
// @ID          searchAppointments
// @Summary     Search appointments
// @Description Filters by case-insensitive substring over name/email/reason/phone and/or by calendar day; both filters AND together. Ordered by start time ascending.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       q     query  string  false "Substring to match"
// @Param       date  query  string  false "Day filter (YYYY-MM-DD)"
//
// @Success     200  {array}   domain.Appointment
// @Failure     400  {object}  handlers.ErrorResponse "Bad date"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /appointments/search [get]
func (h *Handlers) SearchAppointments(c *gin.Context) {
	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := parseDay(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = &d
	}

	items, err := h.bookingSvc.Search(c.Request.Context(), c.Query("q"), date)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// AvailableSlots godoc
// @ID          availableSlots
// @Summary     Weekly availability
// @Description Returns every half-hour business slot for the 7 days from start_date (default: now), marked free or booked, plus the booked appointments in the window.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       start_date  query  string  false "Week start (YYYY-MM-DD or RFC 3339)"
//
// @Success     200  {object}  handlers.AvailableSlotsResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad start_date"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /appointments/available [get]
func (h *Handlers) AvailableSlots(c *gin.Context) {
	var weekStart *time.Time
	if raw := c.Query("start_date"); raw != "" {
		ws, err := parseDay(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD or RFC 3339")
			return
		}
		weekStart = &ws
	}

	slots, booked, err := h.bookingSvc.AvailableSlots(c.Request.Context(), weekStart)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, AvailableSlotsResponse{
		AvailableSlots: slots,
		BookedSlots:    booked,
	})
}

// UpdateAppointment godoc
// @ID          updateAppointment
// @Summary     Edit an appointment
// @Description Overwrites contact fields and slot of a non-cancelled appointment. The new range must be a valid 30-minute weekday business slot with no conflict.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  int                           true  "Appointment ID"
// @Param       body  body  handlers.AppointmentRequest   true  "New contents"
//
// @Success     200  {object}  domain.Appointment
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed or cancelled"
// @Failure     404  {object}  handlers.ErrorResponse "Appointment not found"
// @Failure     409  {object}  handlers.ErrorResponse "Slot already booked"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /appointments/{id} [patch]
func (h *Handlers) UpdateAppointment(c *gin.Context) {
	id := appointmentID(c)
	if id == 0 {
		return
	}

	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	updated, err := h.bookingSvc.Update(c.Request.Context(), id, req.booking())
	if err != nil {
		failBooking(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// CancelAppointment godoc
// @ID          cancelAppointment
// @Summary     Cancel an appointment
// @Description Soft-cancels an appointment. The record stays addressable by id but is excluded from conflicts and availability. Cancelling twice fails.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Appointment ID"
//
// @Success     200  {object}  domain.Appointment
// @Failure     400  {object}  handlers.ErrorResponse "Already cancelled"
// @Failure     404  {object}  handlers.ErrorResponse "Appointment not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /appointments/{id} [delete]
func (h *Handlers) CancelAppointment(c *gin.Context) {
	id := appointmentID(c)
	if id == 0 {
		return
	}

	cancelled, err := h.bookingSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		failBooking(c, err)
		return
	}
	ok(c, http.StatusOK, cancelled)
}
