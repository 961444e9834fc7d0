package auth

import (
	"context"
	"time"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
	"github.com/cookbase/cookbase-auth/pkg/kv"
)

// denylistKeyPrefix namespaces revoked-token entries in the shared store.
const denylistKeyPrefix = "auth:denylist:"

// Denylist records revoked session-token ids. Every protected request
// consults it, so it lives in the shared key-value store where all
// instances see a revocation immediately.
//
// Entries carry a TTL clamped to the token's acceptance window, expiry
// plus the verification leeway: once the token would be rejected as
// expired anyway, the entry self-prunes. No sweeper process is needed.
type Denylist struct {
	store  kv.Store
	leeway time.Duration
	now    func() time.Time
}

// NewDenylist creates a Denylist over the shared key-value store. The
// leeway must match the [Authenticator]'s; a token inside the leeway
// window past its expiry still authenticates, so its revocation entry
// must outlive the expiry by the same margin. A non-positive leeway
// falls back to [DefaultLeeway], mirroring [NewAuthenticator].
func NewDenylist(store kv.Store, leeway time.Duration) *Denylist {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &Denylist{store: store, leeway: leeway, now: time.Now}
}

// Revoke marks the jti as revoked for as long as its token remains
// acceptable, which is expiresAt plus the leeway. Revoking a jti whose
// token is past even the leeway window is a no-op; the expiry check
// rejects the token regardless.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return cberr.New(cberr.CodeValidationRequired, "auth: jti is required")
	}

	remaining := expiresAt.Add(d.leeway).Sub(d.now())
	if remaining <= 0 {
		return nil
	}

	if err := d.store.Set(ctx, denylistKeyPrefix+jti, "revoked", remaining); err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"auth: writing denylist entry failed")
	}
	return nil
}

// IsRevoked reports whether the jti is on the denylist. A store failure is
// returned as an error so callers fail closed rather than admitting a
// possibly revoked token.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	present, err := d.store.Exists(ctx, denylistKeyPrefix+jti)
	if err != nil {
		return false, cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"auth: reading denylist failed")
	}
	return present, nil
}
