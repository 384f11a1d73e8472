package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/pdfrag-go/internal/logging"
)

// requireKey guards next with "Authorization: Bearer <apiKey>". An empty
// apiKey returns next unchanged; New logs a warning once in that case.
// Token values are never logged.
func requireKey(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if ok && subtle.ConstantTimeCompare([]byte(token), want) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		challenge := `Bearer realm="pdfrag"`
		reason := "missing token"
		if ok {
			challenge += ` error="invalid_token"`
			reason = "invalid token"
		}
		logging.FromContext(r.Context()).Warn("auth: request rejected",
			slog.String("reason", reason),
			slog.String("path", r.URL.Path),
		)
		w.Header().Set("WWW-Authenticate", challenge)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

// bearerToken parses an Authorization header value. The scheme is matched
// case-insensitively; ok is false when the header is absent or malformed.
func bearerToken(header string) (token string, ok bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(rest)
	return token, token != ""
}
