package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/farmtable-go/internal/logging"
)

// apiKeyHeader is accepted alongside the Authorization bearer scheme for
// clients that cannot set Authorization, such as some webhook senders.
const apiKeyHeader = "X-API-Key"

// authMiddleware requires the configured API key on every request it wraps.
// With an empty key it returns next unchanged; New logs a startup warning in
// that case. The presented credential is never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token != "" && subtle.ConstantTimeCompare([]byte(token), want) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		challenge := `Bearer realm="farmtable"`
		msg := "authorization required"
		if token != "" {
			challenge += ` error="invalid_token"`
			msg = "invalid token"
		}
		logging.FromContext(r.Context()).Warn("auth: rejected request",
			slog.String("path", r.URL.Path),
			slog.Bool("token_present", token != ""),
		)
		w.Header().Set("WWW-Authenticate", challenge)
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: msg})
	})
}

// requestToken returns the bearer token, falling back to the X-API-Key
// header. Malformed Authorization headers yield "".
func requestToken(r *http.Request) string {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		scheme, token, ok := strings.Cut(hdr, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}
