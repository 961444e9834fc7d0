package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/cookbase/cookbase-auth/pkg/account"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// UserResolver resolves a token subject to a local user. Satisfied by
// *account.UserStore.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*account.LocalUser, error)
}

var _ UserResolver = (*account.UserStore)(nil)

// RevocationChecker reports whether a jti has been revoked. Satisfied by
// *Denylist.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

var _ RevocationChecker = (*Denylist)(nil)

// Authenticator is the cross-cutting check behind every protected endpoint.
// It verifies the session token's signature and expiry against the service
// key, resolves the subject to a local user, and consults the denylist,
// failing closed on any store error.
//
// Every failure collapses to AUTH_001 at this boundary. A caller probing
// with a forged, expired, revoked, or orphaned token learns nothing about
// which check rejected it; the distinction exists only in the slog output.
type Authenticator struct {
	key     []byte
	leeway  time.Duration
	users   UserResolver
	revoked RevocationChecker
	logger  *slog.Logger
}

// NewAuthenticator creates an Authenticator validating with the given
// signing key. A nil logger falls back to slog.Default.
func NewAuthenticator(key Secret, leeway time.Duration, users UserResolver, revoked RevocationChecker, logger *slog.Logger) *Authenticator {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		key:     []byte(key.Value()),
		leeway:  leeway,
		users:   users,
		revoked: revoked,
		logger:  logger,
	}
}

// errUnauthenticated is the single error every Authenticate failure
// resolves to.
func errUnauthenticated() error {
	return cberr.New(cberr.CodeAuthentication, "auth: unauthenticated")
}

// Authenticate validates a raw bearer token and returns the user it was
// issued for, together with the validated claims (the Rotator needs the
// jti and expiry).
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*account.LocalUser, *SessionClaims, error) {
	if raw == "" {
		a.logger.InfoContext(ctx, "authentication rejected", "reason", "missing token")
		return nil, nil, errUnauthenticated()
	}

	claims, err := parseSessionToken(raw, a.key, a.leeway)
	if err != nil {
		a.logger.InfoContext(ctx, "authentication rejected",
			"reason", "token validation failed", "error", err)
		return nil, nil, errUnauthenticated()
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		a.logger.InfoContext(ctx, "authentication rejected",
			"reason", "subject lookup failed", "subject", claims.Subject, "error", err)
		return nil, nil, errUnauthenticated()
	}

	revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Fail closed. Admitting a token while the denylist is unreachable
		// would let a revoked session back in.
		a.logger.ErrorContext(ctx, "authentication rejected",
			"reason", "denylist unavailable", "error", err)
		return nil, nil, errUnauthenticated()
	}
	if revoked {
		a.logger.InfoContext(ctx, "authentication rejected",
			"reason", "token revoked", "jti", claims.ID)
		return nil, nil, errUnauthenticated()
	}

	return user, claims, nil
}
