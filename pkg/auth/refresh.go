package auth

import (
	"context"
	"time"

	"github.com/cookbase/cookbase-auth/pkg/account"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// Revoker inserts denylist entries. Satisfied by *Denylist.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

var _ Revoker = (*Denylist)(nil)

// Rotator exchanges a valid session token for a fresh one. The presented
// token's jti is denylisted before the replacement is issued, so the old
// token cannot be replayed after rotation. Per-jti revocation leaves the
// user's other sessions untouched.
type Rotator struct {
	authenticator *Authenticator
	denylist      Revoker
	issuer        *Issuer
}

// NewRotator creates a Rotator from the authenticator, denylist, and
// issuer it composes.
func NewRotator(authenticator *Authenticator, denylist Revoker, issuer *Issuer) *Rotator {
	return &Rotator{authenticator: authenticator, denylist: denylist, issuer: issuer}
}

// RefreshResult is a successful rotation: the replacement token and the
// user it belongs to.
type RefreshResult struct {
	Token  string
	Claims *SessionClaims
	User   *account.LocalUser
}

// Refresh validates raw, revokes its jti, and issues a replacement for the
// same subject. The denylist write happens strictly before issuance; if it
// fails, Refresh aborts and the presented token stays valid. A rotation
// never silently succeeds with the old token still alive.
func (r *Rotator) Refresh(ctx context.Context, raw string) (*RefreshResult, error) {
	user, claims, err := r.authenticator.Authenticate(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := r.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeInternal,
			"auth: revoking rotated token failed")
	}

	token, newClaims, err := r.issuer.Issue(ctx, user.ID)
	if err != nil {
		// The old token is already dead. The client retries the refresh
		// and gets AUTH_001 on the revoked token, then re-authenticates.
		// That is the safe side of this failure.
		return nil, err
	}

	return &RefreshResult{Token: token, Claims: newClaims, User: user}, nil
}
