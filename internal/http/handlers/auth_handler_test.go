package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

func TestRegister_CreatedAndDuplicate(t *testing.T) {
	r, _ := newTestAPI(t)

	body := map[string]any{
		"full_name": "Jane Smith",
		"email":     "jsmith@example.com",
		"password":  "s3cret-pass",
	}
	w := doJSON(t, r, http.MethodPost, "/auth/register", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var u domain.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil || u.ID == "" {
		t.Fatalf("register payload: %s", w.Body.String())
	}
	if containsField(w.Body.Bytes(), "password_hash") {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}

	// Same email again → conflict.
	w = doJSON(t, r, http.MethodPost, "/auth/register", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", w.Code)
	}
}

// containsField reports whether the JSON object has a top-level key.
func containsField(b []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

func TestRegister_BindingFailures(t *testing.T) {
	r, _ := newTestAPI(t)

	cases := []map[string]any{
		{"email": "a@example.com", "password": "s3cret-pass"},            // no name
		{"full_name": "A", "email": "not-an-email", "password": "s3cret"}, // bad email
		{"full_name": "A", "email": "a@example.com", "password": "x"},     // short password
	}
	for i, body := range cases {
		if w := doJSON(t, r, http.MethodPost, "/auth/register", body, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status = %d, body = %s", i, w.Code, w.Body.String())
		}
	}
}

func TestLogin_TokenAndFailures(t *testing.T) {
	r, _ := newTestAPI(t)

	reg := map[string]any{
		"full_name": "Jane Smith",
		"email":     "jsmith@example.com",
		"password":  "s3cret-pass",
	}
	if w := doJSON(t, r, http.MethodPost, "/auth/register", reg, nil); w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]any{"email": "jsmith@example.com", "password": "s3cret-pass"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login payload: %s", w.Body.String())
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" || resp.User == nil {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]any{"email": "jsmith@example.com", "password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/login",
		map[string]any{"email": "nobody@example.com", "password": "s3cret-pass"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email status = %d", w.Code)
	}
}
