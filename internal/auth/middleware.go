package auth

import (
	"crypto/hmac"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware authenticates the caller via a dashboard session token or a
// static automation bearer token and stores the resulting Identity in the
// request context. staticToken may be empty, in which case only session
// tokens are accepted.
func Middleware(sessionMgr *SessionManager, staticToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			rawToken, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				rawToken, ok = strings.CutPrefix(authHeader, "bearer ")
			}
			if !ok {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "no valid authentication provided")
				return
			}
			rawToken = strings.TrimSpace(rawToken)

			var identity *Identity

			if staticToken != "" && hmac.Equal([]byte(rawToken), []byte(staticToken)) {
				identity = &Identity{Subject: "automation", Method: "static_token"}
			}

			if identity == nil && sessionMgr != nil {
				claims, err := sessionMgr.ValidateToken(rawToken)
				if err == nil {
					identity = &Identity{Subject: claims.Subject, Method: MethodSession}
				} else {
					logger.Debug("session token validation failed", "error", err)
				}
			}

			if identity == nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that have no authenticated identity. Useful
// as a secondary guard when Middleware is mounted conditionally.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			respondErr(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
