// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// middleware.go - HTTP middleware for the streamable MCP transport.
//
// BearerTokenMiddleware guards /mcp and /metrics with a static token from
// mcp_auth.bearer_token. /health stays open for liveness checks.
//
// HTTP Client Usage:
//   Authorization: Bearer your-secret-token

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

// unauthenticatedPaths bypass the bearer check.
var unauthenticatedPaths = map[string]bool{
	"/health": true,
	"/ping":   true,
}

// BearerTokenMiddleware rejects requests whose Authorization header does not
// carry expectedToken. Both "Bearer <token>" and a raw token are accepted.
func BearerTokenMiddleware(expectedToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.AuthLogger

			if unauthenticatedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				logger.Warn("Authentication failed: missing Authorization header",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method)
				unauthorized(w, "Authorization header required")
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" {
				logger.Warn("Authentication failed: empty token", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				unauthorized(w, "Token cannot be empty")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.Warn("Authentication failed: invalid Bearer token",
					"remote_addr", r.RemoteAddr,
					"user_agent", r.Header.Get("User-Agent"),
					"path", r.URL.Path,
					"method", r.Method,
					"token_length", len(token))
				unauthorized(w, "Invalid token")
				return
			}

			logger.Debug("Authentication successful", "path", r.URL.Path, "method", r.Method)
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, msg, http.StatusUnauthorized)
}

// RequestLoggingMiddleware logs each request and its resulting status code.
func RequestLoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.MainLogger
			logger.Debug("HTTP request received",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"content_length", r.ContentLength)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode >= 400 {
				logger.Warn("HTTP request completed with error",
					"method", r.Method,
					"path", r.URL.Path,
					"status_code", wrapped.statusCode,
					"remote_addr", r.RemoteAddr)
				return
			}
			logger.Debug("HTTP request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", wrapped.statusCode)
		})
	}
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streamed MCP responses are not buffered.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
