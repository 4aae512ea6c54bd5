package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/http/middleware"
	"github.com/tbourn/go-booking-backend/internal/repo"
	"github.com/tbourn/go-booking-backend/internal/services"
)

// fixedNow freezes "now" to a Tuesday morning so the slots booked below are
// always in the future.
var fixedNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

// ---------- test DB + fixture ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:appt_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Appointment{}, &domain.User{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestAPI builds a minimal engine with real services over sqlite. The
// fakeUser middleware stands in for RequireAuth so idempotency sees a caller.
func newTestAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)

	bookingSvc := services.NewBookingService(db)
	bookingSvc.Now = func() time.Time { return fixedNow }
	authSvc := services.NewAuthService(db, []byte("test-secret"))

	h := New(bookingSvc, authSvc, time.Hour)

	r := gin.New()
	fakeUser := func(c *gin.Context) { c.Set("userID", "u-test") }
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	)

	appts := r.Group("/appointments", fakeUser, idem)
	appts.GET("", h.ListAppointments)
	appts.POST("", h.CreateAppointment)
	appts.GET("/available", h.AvailableSlots)
	appts.GET("/search", h.SearchAppointments)
	appts.PATCH("/:id", h.UpdateAppointment)
	appts.DELETE("/:id", h.CancelAppointment)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bookingBody(start time.Time, repeat int) map[string]any {
	return map[string]any{
		"name":       "Jane Smith",
		"email":      "jsmith@example.com",
		"phone":      "+44 20 7946 0958",
		"reason":     "Initial consultation",
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(30 * time.Minute).Format(time.RFC3339),
		"repeat":     repeat,
	}
}

func mondayAt(hour, min int) time.Time {
	return time.Date(2026, 9, 7, hour, min, 0, 0, time.UTC)
}

// ---------- create ----------

func TestCreateAppointment_CreatedThenConflict(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(10, 0), 0), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || len(created) != 1 {
		t.Fatalf("bad create payload: %s (%v)", w.Body.String(), err)
	}

	w = doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(10, 0), 0), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("conflict status = %d, body = %s", w.Code, w.Body.String())
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeConflict {
		t.Fatalf("bad conflict envelope: %s", w.Body.String())
	}
}

func TestCreateAppointment_RepeatSeries(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(9, 0), 2), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || len(created) != 3 {
		t.Fatalf("expected 3 occurrences, got %s", w.Body.String())
	}
}

func TestCreateAppointment_ValidationCodes(t *testing.T) {
	r, _ := newTestAPI(t)

	// Past slot → past_time.
	w := doJSON(t, r, http.MethodPost, "/appointments",
		bookingBody(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), 0), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("past status = %d", w.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Code != ErrCodePastTime {
		t.Fatalf("past code = %q", er.Code)
	}

	// Weekend → weekend.
	w = doJSON(t, r, http.MethodPost, "/appointments",
		bookingBody(time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC), 0), nil)
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusBadRequest || er.Code != ErrCodeWeekend {
		t.Fatalf("weekend status=%d code=%q", w.Code, er.Code)
	}

	// Off-grid → validation_failed.
	w = doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(10, 15), 0), nil)
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusBadRequest || er.Code != ErrCodeValidation {
		t.Fatalf("off-grid status=%d code=%q", w.Code, er.Code)
	}

	// Malformed body → bad_request (binding failure).
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
}

func TestCreateAppointment_IdempotentReplay(t *testing.T) {
	r, _ := newTestAPI(t)
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "retry-abc-1"}

	w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(13, 0), 0), hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("first status = %d, body = %s", w.Code, w.Body.String())
	}
	var first []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil || len(first) != 1 {
		t.Fatalf("bad first payload: %s", w.Body.String())
	}

	// Same key replays the stored booking instead of conflicting.
	w = doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(13, 0), 0), hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d, body = %s", w.Code, w.Body.String())
	}
	var replay []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &replay); err != nil || len(replay) != 1 {
		t.Fatalf("bad replay payload: %s", w.Body.String())
	}
	if replay[0].ID != first[0].ID {
		t.Fatalf("replay returned a different appointment: %d vs %d", replay[0].ID, first[0].ID)
	}

	// Without the key the same slot is a plain conflict.
	w = doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(13, 0), 0), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("no-key status = %d", w.Code)
	}
}

// ---------- list ----------

func TestListAppointments_PlainAndPaged(t *testing.T) {
	r, _ := newTestAPI(t)

	for _, h := range []int{9, 10, 11} {
		if w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(h, 0), 0), nil); w.Code != http.StatusCreated {
			t.Fatalf("seed %d: %d %s", h, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, http.MethodGet, "/appointments", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var all []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil || len(all) != 3 {
		t.Fatalf("plain list: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/appointments?page=2&page_size=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("paged status = %d", w.Code)
	}
	var paged ListAppointmentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &paged); err != nil {
		t.Fatalf("paged payload: %s", w.Body.String())
	}
	if len(paged.Appointments) != 1 || paged.Pagination.Total != 3 || paged.Pagination.TotalPages != 2 || paged.Pagination.HasNext {
		t.Fatalf("pagination mismatch: %+v", paged.Pagination)
	}
}

func TestListAppointments_ETagRoundTrip(t *testing.T) {
	r, _ := newTestAPI(t)

	if w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(9, 0), 0), nil); w.Code != http.StatusCreated {
		t.Fatalf("seed: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/appointments", nil, nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("expected ETag, status=%d etag=%q", w.Code, etag)
	}

	// Same state → 304.
	w = doJSON(t, r, http.MethodGet, "/appointments", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// A cancel adds no row but must still invalidate the tag.
	var all []domain.Appointment
	w = doJSON(t, r, http.MethodGet, "/appointments", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &all)
	if w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/appointments/%d", all[0].ID), nil, nil); w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodGet, "/appointments", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after cancel, got %d", w.Code)
	}
}

func TestListAppointments_ETagChangesOnUpdate(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(9, 0), 0), nil)
	var created []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || len(created) != 1 {
		t.Fatalf("seed: %s (%v)", w.Body.String(), err)
	}

	w = doJSON(t, r, http.MethodGet, "/appointments", nil, nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	// Moving the slot adds no row and cancels nothing, yet it must still
	// invalidate the tag.
	if w := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/appointments/%d", created[0].ID),
		bookingBody(mondayAt(11, 0), 0), nil); w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/appointments", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after update, got %d", w.Code)
	}
	if nt := w.Header().Get("ETag"); nt == "" || nt == etag {
		t.Fatalf("ETag not refreshed after update: %q", nt)
	}
}

// ---------- search / availability ----------

func TestSearchAppointments(t *testing.T) {
	r, _ := newTestAPI(t)

	if w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(9, 0), 0), nil); w.Code != http.StatusCreated {
		t.Fatalf("seed: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/appointments/search?q=SMITH", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var got []domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || len(got) != 1 {
		t.Fatalf("search payload: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/appointments/search?q=smith&date=2026-09-08", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if w.Code != http.StatusOK || len(got) != 0 {
		t.Fatalf("day-filtered search: status=%d n=%d", w.Code, len(got))
	}

	w = doJSON(t, r, http.MethodGet, "/appointments/search?date=not-a-date", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", w.Code)
	}
}

func TestAvailableSlots_GridAndBadInput(t *testing.T) {
	r, _ := newTestAPI(t)

	if w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(10, 0), 0), nil); w.Code != http.StatusCreated {
		t.Fatalf("seed: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/appointments/available?start_date=2026-09-07", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("available status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AvailableSlotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("available payload: %s", w.Body.String())
	}
	if len(resp.AvailableSlots) != 80 {
		t.Fatalf("grid size = %d, want 80", len(resp.AvailableSlots))
	}
	if len(resp.BookedSlots) != 1 {
		t.Fatalf("booked slots = %d, want 1", len(resp.BookedSlots))
	}
	booked := 0
	for _, s := range resp.AvailableSlots {
		if s.Booked {
			booked++
		}
	}
	if booked != 1 {
		t.Fatalf("marked booked = %d, want 1", booked)
	}

	w = doJSON(t, r, http.MethodGet, "/appointments/available?start_date=nope", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad start_date status = %d", w.Code)
	}
}

// ---------- update / cancel ----------

func TestUpdateAppointment(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(10, 0), 0), nil)
	var created []domain.Appointment
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/appointments/%d", created[0].ID),
		bookingBody(mondayAt(14, 0), 0), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil || !updated.StartTime.Equal(mondayAt(14, 0)) {
		t.Fatalf("update payload: %s", w.Body.String())
	}

	// Non-numeric id.
	w = doJSON(t, r, http.MethodPatch, "/appointments/abc", bookingBody(mondayAt(15, 0), 0), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}

	// Unknown id.
	w = doJSON(t, r, http.MethodPatch, "/appointments/9999", bookingBody(mondayAt(15, 0), 0), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing id status = %d", w.Code)
	}
}

func TestCancelAppointment_ThenLocked(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/appointments", bookingBody(mondayAt(10, 0), 0), nil)
	var created []domain.Appointment
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := created[0].ID

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/appointments/%d", id), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", w.Code, w.Body.String())
	}
	var cancelled domain.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &cancelled); err != nil || !cancelled.Cancelled {
		t.Fatalf("cancel payload: %s", w.Body.String())
	}

	var er ErrorResponse
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/appointments/%d", id), nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusBadRequest || er.Code != ErrCodeAlreadyCancelled {
		t.Fatalf("double cancel: status=%d code=%q", w.Code, er.Code)
	}

	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/appointments/%d", id), bookingBody(mondayAt(15, 0), 0), nil)
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusBadRequest || er.Code != ErrCodeCancelledLocked {
		t.Fatalf("update cancelled: status=%d code=%q", w.Code, er.Code)
	}
}
