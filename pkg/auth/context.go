package auth

import (
	"context"

	"github.com/cookbase/cookbase-auth/pkg/account"
)

// ctxKey is an unexported type so context values set here cannot collide
// with keys from other packages.
type ctxKey int

const (
	userKey ctxKey = iota
	claimsKey
)

// ContextWithUser returns a context carrying the authenticated user.
// Scoped to the request lifecycle; never stored beyond it.
func ContextWithUser(ctx context.Context, user *account.LocalUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, if the request passed
// the middleware.
func UserFromContext(ctx context.Context) (*account.LocalUser, bool) {
	user, ok := ctx.Value(userKey).(*account.LocalUser)
	return user, ok
}

// ContextWithClaims returns a context carrying the validated session
// claims. The logout handler reads the jti from here.
func ContextWithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the validated session claims, if present.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*SessionClaims)
	return claims, ok
}
