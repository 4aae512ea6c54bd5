// Package services – AuthService
//
// This file implements the AuthService, the account collaborator in front of
// the scheduling engine: it registers accounts (bcrypt-hashed passwords) and
// exchanges credentials for signed HS256 tokens. Token verification for
// incoming requests lives in the HTTP middleware; this service only issues.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/repo"
)

// minPasswordLen is the smallest accepted registration password.
const minPasswordLen = 6

// AuthService implements account registration and login.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Secret signs issued tokens (HS256).
	Secret []byte
	// TokenTTL bounds the lifetime of issued tokens.
	TokenTTL time.Duration

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// NewAuthService constructs an AuthService with a three-hour token lifetime.
func NewAuthService(db *gorm.DB, secret []byte) *AuthService {
	return &AuthService{DB: db, Secret: secret, TokenTTL: 3 * time.Hour}
}

func (s *AuthService) clock() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates an account for the given name/email/password. The password
// is stored as a bcrypt hash. Fails with ErrMissingField, ErrWeakPassword, or
// ErrEmailTaken for the predictable cases.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingField
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	if _, err := repo.GetUserByEmail(ctx, s.DB, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, name, email, string(hash))
	if err != nil {
		// The unique email index backs the pre-check under concurrency.
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and returns a signed bearer token plus the
// account. Unknown emails and wrong passwords both fail with
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := s.clock()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.TokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}
