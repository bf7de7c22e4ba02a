package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionClaims are the claims embedded in a self-issued dashboard token.
// fleetwatch has a single administrative operator, not a multi-tenant
// user directory, so the claim set carries only what that operator's
// identity needs.
type SessionClaims struct {
	Subject string    `json:"sub"`
	Expiry  time.Time `json:"exp"`
}

// SessionManager issues and validates opaque HMAC-signed dashboard tokens.
// The teacher signs session JWTs with go-jose, a dependency pulled in
// transitively by its OIDC stack; fleetwatch drops OIDC entirely (see
// DESIGN.md) and has no other use for a JOSE library, so a bare
// payload.signature token over crypto/hmac replaces it.
type SessionManager struct {
	signingKey []byte
	maxAge     time.Duration
}

// NewSessionManager creates a session manager. The secret must be at least 32 bytes.
func NewSessionManager(secret string, maxAge time.Duration) (*SessionManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	return &SessionManager{
		signingKey: []byte(secret),
		maxAge:     maxAge,
	}, nil
}

// GenerateDevSecret generates a random 32-byte hex-encoded secret for dev mode.
func GenerateDevSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// IssueToken creates a signed token for the given subject.
func (sm *SessionManager) IssueToken(subject string) (string, error) {
	claims := SessionClaims{Subject: subject, Expiry: time.Now().Add(sm.maxAge)}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	sig := sm.sign(encodedPayload)

	return encodedPayload + "." + sig, nil
}

// ValidateToken verifies the token's signature and expiry and returns the claims.
func (sm *SessionManager) ValidateToken(raw string) (*SessionClaims, error) {
	encodedPayload, sig, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, fmt.Errorf("malformed token")
	}

	if !hmac.Equal([]byte(sig), []byte(sm.sign(encodedPayload))) {
		return nil, fmt.Errorf("invalid signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	var claims SessionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshaling claims: %w", err)
	}

	if time.Now().After(claims.Expiry) {
		return nil, fmt.Errorf("token expired")
	}

	return &claims, nil
}

func (sm *SessionManager) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, sm.signingKey)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
