package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// MethodSession indicates authentication via the self-issued dashboard token.
const MethodSession = "session"

// Identity is the authenticated caller attached to a request context.
// fleetwatch has exactly one operator identity (the dashboard admin), so
// this carries no tenant or role fields.
type Identity struct {
	Subject string
	Method  string
}

type contextKey int

const identityContextKey contextKey = 0

// NewContext returns a copy of ctx carrying identity.
func NewContext(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// FromContext returns the Identity stored in ctx, or nil if absent.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
