package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
	"github.com/cookbase/cookbase-auth/pkg/kv"
)

// ---------------------------------------------------------------------------
// Revoke / IsRevoked
// ---------------------------------------------------------------------------

func TestDenylist_RevokeAndCheck(t *testing.T) {
	t.Parallel()
	d := NewDenylist(kv.NewMemory(), time.Minute)

	require.NoError(t, d.Revoke(context.Background(), "jti-1", time.Now().Add(time.Hour)))

	revoked, err := d.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestDenylist_NotRevoked(t *testing.T) {
	t.Parallel()
	d := NewDenylist(kv.NewMemory(), time.Minute)

	revoked, err := d.IsRevoked(context.Background(), "never-revoked")
	require.NoError(t, err)
	assert.False(t, revoked)
}

// TestDenylist_RevokeWithinLeeway pins the entry lifetime against the
// acceptance window: a token past its expiry but inside the leeway
// still authenticates, so revoking it must write an entry rather than
// no-op.
func TestDenylist_RevokeWithinLeeway(t *testing.T) {
	t.Parallel()
	d := NewDenylist(kv.NewMemory(), time.Minute)

	require.NoError(t, d.Revoke(context.Background(), "jti-grace", time.Now().Add(-30*time.Second)))

	revoked, err := d.IsRevoked(context.Background(), "jti-grace")
	require.NoError(t, err)
	assert.True(t, revoked, "a token still inside the leeway window must be denylistable")
}

// TestDenylist_RevokePastLeeway verifies revoking a token past expiry
// plus leeway is a no-op: the expiry check rejects it anyway and the
// entry would only occupy store space.
func TestDenylist_RevokePastLeeway(t *testing.T) {
	t.Parallel()
	d := NewDenylist(kv.NewMemory(), time.Minute)

	require.NoError(t, d.Revoke(context.Background(), "jti-old", time.Now().Add(-2*time.Minute)))

	revoked, err := d.IsRevoked(context.Background(), "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

// TestDenylist_EntrySelfPrunes verifies the entry disappears once the
// token it covers is past its acceptance window.
func TestDenylist_EntrySelfPrunes(t *testing.T) {
	t.Parallel()
	d := NewDenylist(kv.NewMemory(), time.Millisecond)

	require.NoError(t, d.Revoke(context.Background(), "jti-1", time.Now().Add(5*time.Millisecond)))

	revoked, err := d.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	time.Sleep(20 * time.Millisecond)

	revoked, err = d.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestDenylist_EmptyJTI(t *testing.T) {
	t.Parallel()
	d := NewDenylist(kv.NewMemory(), time.Minute)

	err := d.Revoke(context.Background(), "", time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, cberr.HasCode(err, cberr.CodeValidationRequired))
}
