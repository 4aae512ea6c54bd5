// Authentication HTTP handlers: account registration and credential login.
// Both endpoints are public; everything under /appointments requires the
// bearer token minted here.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/services"
)

// RegisterRequest is the JSON payload for account creation.
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required,min=1,max=120" example:"Jane Smith"`
	Email    string `json:"email"     binding:"required,email"         example:"jsmith@example.com"`
	Password string `json:"password"  binding:"required,min=6,max=128" example:"s3cret-pass"`
}

// LoginRequest is the JSON payload for credential login.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email" example:"jsmith@example.com"`
	Password string `json:"password" binding:"required"       example:"s3cret-pass"`
}

// LoginResponse carries the signed bearer token plus the account it belongs to.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type" example:"bearer"`
	User        *domain.User `json:"user"`
}

// Register godoc
// @ID          registerUser
// @Summary     Create an account
// @Description Registers a new account. Emails are unique; passwords are stored as bcrypt hashes and never returned.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Account details"
//
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     409  {object}  handlers.ErrorResponse "Email already registered"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, services.ErrWeakPassword),
			errors.Is(err, services.ErrMissingField):
			fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, user)
}

// Login godoc
// @ID          loginUser
// @Summary     Log in
// @Description Verifies credentials and returns a signed bearer token for the appointments API.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse "Invalid credentials"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	token, user, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}
