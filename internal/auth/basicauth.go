package auth

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// LoginRequest is the JSON body for POST /api/auth/token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for a successful login.
type LoginResponse struct {
	Token string `json:"token"`
}

// LoginHandler verifies the dashboard operator's password against a bcrypt
// hash and issues a dashboard token, grounded on the teacher's local-admin
// login flow (internal/auth/login.go, bcrypt.CompareHashAndPassword) with
// the multi-tenant user lookup dropped in favor of a single configured
// username/password-hash pair.
type LoginHandler struct {
	sessionMgr   *SessionManager
	rateLimiter  *RateLimiter
	username     string
	passwordHash string
	logger       *slog.Logger
}

// NewLoginHandler creates a login handler.
func NewLoginHandler(sm *SessionManager, rl *RateLimiter, username, passwordHash string, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{sessionMgr: sm, rateLimiter: rl, username: username, passwordHash: passwordHash, logger: logger}
}

// HandleLogin authenticates the operator and returns a dashboard token.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)

	if h.rateLimiter != nil {
		result, err := h.rateLimiter.Check(r.Context(), ip)
		if err != nil {
			h.logger.Error("login: rate limit check failed", "error", err)
		} else if !result.Allowed {
			respondErr(w, http.StatusTooManyRequests, "rate_limited", "too many failed login attempts")
			return
		}
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if req.Username != h.username || h.passwordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		if h.rateLimiter != nil {
			_ = h.rateLimiter.Record(r.Context(), ip)
		}
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid username or password")
		return
	}

	if h.rateLimiter != nil {
		_ = h.rateLimiter.Reset(r.Context(), ip)
	}

	token, err := h.sessionMgr.IssueToken(req.Username)
	if err != nil {
		h.logger.Error("login: issuing token", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token})
}
