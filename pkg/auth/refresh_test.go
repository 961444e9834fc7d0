package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookbase/cookbase-auth/pkg/account"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
	"github.com/cookbase/cookbase-auth/pkg/kv"
)

// countingRevoker records Revoke calls and can be told to fail.
type countingRevoker struct {
	inner Revoker
	calls int
	fail  bool
}

func (c *countingRevoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	c.calls++
	if c.fail {
		return cberr.New(cberr.CodeUnavailableDependency, "store down")
	}
	return c.inner.Revoke(ctx, jti, expiresAt)
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRotator_Refresh(t *testing.T) {
	t.Parallel()
	issuer, denylist, authenticator, user := newAuthStack(t)
	rotator := NewRotator(authenticator, denylist, issuer)

	raw, oldClaims, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	result, err := rotator.Refresh(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.Equal(t, user.ID, result.Claims.Subject)
	assert.NotEqual(t, oldClaims.ID, result.Claims.ID, "replacement must carry a fresh jti")

	revoked, err := denylist.IsRevoked(context.Background(), oldClaims.ID)
	require.NoError(t, err)
	assert.True(t, revoked, "old jti must be denylisted")

	// The replacement authenticates.
	_, _, err = authenticator.Authenticate(context.Background(), result.Token)
	require.NoError(t, err)
}

// TestRotator_Refresh_SecondUseFails pins the rotation property: the same
// token refreshes exactly once; the second presentation is rejected at the
// boundary.
func TestRotator_Refresh_SecondUseFails(t *testing.T) {
	t.Parallel()
	issuer, denylist, authenticator, user := newAuthStack(t)
	rotator := NewRotator(authenticator, denylist, issuer)

	raw, _, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	_, err = rotator.Refresh(context.Background(), raw)
	require.NoError(t, err)

	_, err = rotator.Refresh(context.Background(), raw)
	requireUnauthenticated(t, err)
}

func TestRotator_Refresh_InvalidToken(t *testing.T) {
	t.Parallel()
	issuer, denylist, authenticator, _ := newAuthStack(t)
	rotator := NewRotator(authenticator, denylist, issuer)

	_, err := rotator.Refresh(context.Background(), "garbage")
	requireUnauthenticated(t, err)
}

// TestRotator_Refresh_DenylistFailureAborts verifies the
// denylist-before-issue ordering: when the revocation write fails, no
// replacement token is issued and the old token stays usable.
func TestRotator_Refresh_DenylistFailureAborts(t *testing.T) {
	t.Parallel()
	issuer, denylist, authenticator, user := newAuthStack(t)
	failing := &countingRevoker{inner: denylist, fail: true}
	rotator := NewRotator(authenticator, failing, issuer)

	raw, _, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	result, err := rotator.Refresh(context.Background(), raw)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, failing.calls)
	assert.True(t, cberr.IsInternal(err))

	// The presented token was never revoked and still authenticates.
	_, _, err = authenticator.Authenticate(context.Background(), raw)
	require.NoError(t, err)
}

// TestRotator_Refresh_OtherSessionsUntouched verifies per-jti revocation:
// rotating one session leaves the same user's second session active.
func TestRotator_Refresh_OtherSessionsUntouched(t *testing.T) {
	t.Parallel()
	issuer, denylist, authenticator, user := newAuthStack(t)
	rotator := NewRotator(authenticator, denylist, issuer)

	phone, _, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	laptop, _, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	_, err = rotator.Refresh(context.Background(), phone)
	require.NoError(t, err)

	_, _, err = authenticator.Authenticate(context.Background(), laptop)
	require.NoError(t, err, "rotating the phone session must not kill the laptop session")
}

// TestRotator_Refresh_ExpiredWithinLeeway pins rotation during the
// acceptance window: a token past its expiry but inside the
// authenticator's leeway still refreshes, and that refresh must
// denylist it like any other. Without the leeway-extended entry TTL the
// write is a no-op and the token refreshes again.
func TestRotator_Refresh_ExpiredWithinLeeway(t *testing.T) {
	t.Parallel()
	user := &account.LocalUser{ID: "u-42", Email: "alice@cookbase.app", DisplayName: "Alice"}
	denylist := NewDenylist(kv.NewMemory(), time.Minute)
	authenticator := NewAuthenticator(testSigningKey, time.Minute,
		newMemUsers(user), denylist, testLogger())
	rotator := NewRotator(authenticator, denylist, NewIssuer(testSigningKey, time.Hour))

	// exp lands 30s in the past, inside the one-minute leeway.
	stale := NewIssuer(testSigningKey, 30*time.Second)
	stale.now = func() time.Time { return time.Now().Add(-time.Minute) }
	raw, oldClaims, err := stale.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	result, err := rotator.Refresh(context.Background(), raw)
	require.NoError(t, err, "a token inside the leeway window must still rotate")
	assert.Equal(t, user.ID, result.User.ID)

	revoked, err := denylist.IsRevoked(context.Background(), oldClaims.ID)
	require.NoError(t, err)
	assert.True(t, revoked, "the rotated jti must be denylisted despite being past exp")

	_, err = rotator.Refresh(context.Background(), raw)
	requireUnauthenticated(t, err)
}
