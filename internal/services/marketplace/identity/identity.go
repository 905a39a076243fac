// Package identity resolves the acting user from signed bearer tokens and
// tracks the current identity for long-lived callers.
package identity

import (
	"context"
	"strings"
)

// Identity is an authenticated marketplace user. The zero value means none.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsZero reports whether no user is present.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.ID) == ""
}

type contextKey struct{}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext returns the identity stored in ctx, or the zero Identity.
func FromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	identity, _ := ctx.Value(contextKey{}).(Identity)
	return identity
}
