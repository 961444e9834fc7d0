package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// sessionTokenMethod is the only algorithm for session tokens. It is fixed
// at build time and never request-configurable.
var sessionTokenMethod = jwt.SigningMethodHS256

// SessionClaims is the validated content of a Cookbase session token.
type SessionClaims struct {
	// Subject is the local user id the token was issued for.
	Subject string

	// ID is the token's jti, the sole unit of revocation. Unique per
	// issuance.
	ID string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints the service's own signed bearer tokens. Tokens are
// self-contained; nothing is persisted at issuance, and revocation happens
// through the [Denylist] keyed on jti.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an Issuer signing with the given key. The key must be
// at least [MinSigningKeyLen] bytes; [Config.Validate] enforces this at
// startup. A non-positive ttl falls back to [DefaultTokenTTL].
func NewIssuer(key Secret, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{key: []byte(key.Value()), ttl: ttl, now: time.Now}
}

// Issue mints a token for the user id with a fresh jti. The returned
// claims echo what was signed so callers can report the expiry without
// re-parsing the token.
func (i *Issuer) Issue(_ context.Context, userID string) (string, *SessionClaims, error) {
	if userID == "" {
		return "", nil, cberr.New(cberr.CodeValidationRequired,
			"auth: user id is required")
	}

	now := i.now().Truncate(time.Second)
	claims := &SessionClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	token := jwt.NewWithClaims(sessionTokenMethod, jwt.RegisteredClaims{
		Subject:   claims.Subject,
		ID:        claims.ID,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", nil, cberr.Wrap(err, cberr.CodeInternal,
			"auth: signing session token failed")
	}
	return signed, claims, nil
}

// parseSessionToken validates a raw session token against the signing key
// and returns its claims. The algorithm is pinned to HS256; leeway covers
// clock drift between instances.
func parseSessionToken(raw string, key []byte, leeway time.Duration) (*SessionClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{sessionTokenMethod.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, cberr.New(cberr.CodeAuthenticationInvalid,
			"auth: session token is missing required claims")
	}

	out := &SessionClaims{Subject: claims.Subject, ID: claims.ID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
