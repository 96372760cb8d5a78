// Package auth extracts request identity set by the upstream auth layer.
// The gateway terminates authentication and forwards the verified user id in
// the X-User-ID header; this service trusts that header.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

var userIDKey contextKey

// HeaderUserID is the header carrying the authenticated user id
const HeaderUserID = "X-User-ID"

// Middleware rejects requests without an X-User-ID header and stores the id
// in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			http.Error(w, "missing X-User-ID header", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id from the request context.
// Empty when the middleware did not run.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
