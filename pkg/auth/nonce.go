package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
	"github.com/cookbase/cookbase-auth/pkg/kv"
)

// nonceKeyPrefix namespaces nonce entries in the shared store.
const nonceKeyPrefix = "auth:nonce:"

// nonceBytes is the entropy per nonce. 16 random bytes encode to a 22
// character base64url value.
const nonceBytes = 16

// NonceStore issues one-time anti-replay values for login attempts. The
// nonce is embedded in the provider login request and comes back as a claim
// in the identity token; the [Verifier] compares the two.
//
// Nonces are keyed by a client-supplied session handle so concurrent login
// attempts from the same user (two browser tabs, phone and laptop) hold
// independent nonces instead of clobbering each other.
type NonceStore struct {
	store kv.Store
	ttl   time.Duration
}

// NewNonceStore creates a NonceStore over the shared key-value store. A
// non-positive ttl falls back to [DefaultNonceTTL].
func NewNonceStore(store kv.Store, ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceStore{store: store, ttl: ttl}
}

// Issue generates a fresh nonce for the session handle and stores it with
// the configured TTL. The conditional write means a handle that already
// holds an unexpired nonce keeps it; reissuing for the same handle within
// the TTL returns the stored value so a retried login request stays
// consistent with the provider redirect already in flight.
func (n *NonceStore) Issue(ctx context.Context, sessionHandle string) (string, error) {
	if sessionHandle == "" {
		return "", cberr.New(cberr.CodeValidationRequired,
			"auth: session handle is required")
	}
	key := nonceKeyPrefix + sessionHandle

	// Two attempts: the only reason to retry is the losing race where
	// the winner's entry expired between the SetNX and the Get, and
	// that window cannot repeat against a TTL measured in minutes.
	for attempt := 0; attempt < 2; attempt++ {
		buf := make([]byte, nonceBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", cberr.Wrap(err, cberr.CodeInternal,
				"auth: generating nonce failed")
		}
		nonce := base64.RawURLEncoding.EncodeToString(buf)

		stored, err := n.store.SetNX(ctx, key, nonce, n.ttl)
		if err != nil {
			return "", cberr.Wrap(err, cberr.CodeUnavailableDependency,
				"auth: storing nonce failed")
		}
		if stored {
			return nonce, nil
		}

		// Another request for this handle won the write. Return its nonce.
		existing, ok, err := n.store.Get(ctx, key)
		if err != nil {
			return "", cberr.Wrap(err, cberr.CodeUnavailableDependency,
				"auth: reading nonce failed")
		}
		if ok {
			return existing, nil
		}
	}

	return "", cberr.New(cberr.CodeUnavailableDependency,
		"auth: nonce store lost repeated conditional writes")
}

// Peek returns the nonce currently held for the session handle, if any.
// Login handlers use it to recover the expected nonce for verification.
func (n *NonceStore) Peek(ctx context.Context, sessionHandle string) (string, bool, error) {
	value, ok, err := n.store.Get(ctx, nonceKeyPrefix+sessionHandle)
	if err != nil {
		return "", false, cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"auth: reading nonce failed")
	}
	return value, ok, nil
}

// Clear removes the nonce for the session handle. Called after a login
// attempt completes so the value cannot be replayed within its TTL.
func (n *NonceStore) Clear(ctx context.Context, sessionHandle string) error {
	if err := n.store.Del(ctx, nonceKeyPrefix+sessionHandle); err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"auth: clearing nonce failed")
	}
	return nil
}
