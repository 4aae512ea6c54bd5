// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Every scheduling endpoint
// requires an authenticated caller identity; the middleware verifies the
// HS256 token issued by the auth service and stores the account id in the
// Gin context under "userID" for handlers, logging, and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userIDKey is the Gin context key carrying the authenticated account id.
const userIDKey = "userID"

// UserID returns the authenticated account id set by RequireAuth. The second
// return value indicates presence.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// RequireAuth returns a middleware that rejects requests without a valid
// "Authorization: Bearer <token>" header. Tokens are verified with the given
// HS256 secret; expiry is enforced by the JWT library via the exp claim.
//
// On success the token subject is stored in the context as the caller
// identity. On failure the request is aborted with 401 and a structured
// error body matching the handlers' envelope.
func RequireAuth(secret []byte) gin.HandlerFunc {
	keyFn := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}

	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, keyFn,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			abortUnauthorized(c, "invalid token subject")
			return
		}

		c.Set(userIDKey, sub)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": asString(rid),
		"code":       "unauthorized",
		"message":    msg,
	})
}
