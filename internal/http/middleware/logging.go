// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides request correlation, structured access logging, and a
// panic-safe recovery handler:
//
//   - RequestID() ensures every request carries a stable correlation ID
//     (propagated via X-Request-ID and stored in the Gin context).
//   - Logger() emits structured access logs with request/response metadata
//     (latency, status, sizes), masks configured sensitive headers, attaches
//     a request-scoped zerolog.Logger, and selects log level by outcome.
//   - Recovery() converts panics into JSON 500 responses while preserving the
//     correlation ID and emitting a stack trace to logs.
//   - LoggerFrom() retrieves the request-scoped logger inside handlers.
//
// Recommended ordering: RequestID → Logger → Recovery, so that panics and
// errors include the correlation ID and are logged.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID attaches (or propagates) a correlation identifier per request.
// Incoming X-Request-ID values are reused; otherwise a new UUIDv4 is
// generated. The ID is echoed on the response and stored in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// LogOptions configures the access logger.
type LogOptions struct {
	// MaskHeaders lists request headers whose values must never reach the
	// logs (e.g. Authorization, Idempotency-Key). Matching is
	// case-insensitive; present headers are logged as "[masked]".
	MaskHeaders []string
}

// Logger writes a structured access log for each request and response.
//
// It records method, route path, remote IP, user agent, correlation ID, user
// ID (when auth middleware has run), request size, response status, latency,
// and bytes written, choosing the log level by outcome (error for 5xx, warn
// for 4xx, info otherwise). A request-scoped logger is stored in the context
// under "logger" for handlers to enrich.
func Logger(opt LogOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(opt.MaskHeaders))
	for _, h := range opt.MaskHeaders {
		masked[strings.ToLower(h)] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			// Fallback when route not matched / 404.
			path = c.Request.URL.Path
		}

		lctx := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength)

		// Correlate with the OTel span when tracing is active.
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			lctx = lctx.Str("trace_id", sc.TraceID().String())
		}

		for name := range masked {
			if c.GetHeader(name) != "" {
				lctx = lctx.Str("hdr_"+name, "[masked]")
			}
		}

		l := lctx.Logger()
		c.Set("logger", &l)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		ev := l.Info()
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		}
		ev.
			Int("status", status).
			Dur("latency", latency).
			Int("bytes_out", c.Writer.Size()).
			Str("user_id", asString(mustGet(c, "userID"))).
			Msg("http request")
	}
}

// Recovery converts panics into a JSON 500 response carrying the correlation
// ID, and logs the panic value with a stack trace.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				rid, _ := c.Get(requestIDKey)
				LoggerFrom(c).Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": asString(rid),
					"code":       "internal_error",
					"message":    "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger(), or the
// global logger when none is present (e.g. in tests).
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return &log.Logger
}

func mustGet(c *gin.Context, key string) any {
	v, _ := c.Get(key)
	return v
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
