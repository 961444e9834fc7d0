package auth

import (
	"context"
	"crypto"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// identityTokenMethods pins the signature algorithms accepted on identity
// tokens. The provider signs with asymmetric keys only; accepting anything
// else (above all "none" or an HMAC scheme keyed by the public key) would
// void verification.
var identityTokenMethods = []string{"RS256", "ES256"}

// IdentityClaims is the verified content of an identity token.
type IdentityClaims struct {
	// Subject is the provider-scoped stable user identifier.
	Subject string

	// Issuer and Audience echo the validated iss and aud claims.
	Issuer   string
	Audience []string

	// Name, Picture, and Email carry the provider profile when present.
	Name    string
	Picture string
	Email   string

	// Nonce is the anti-replay claim bound at login-request time.
	Nonce string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// identityTokenClaims is the wire shape handed to the JWT parser.
type identityTokenClaims struct {
	jwt.RegisteredClaims
	Nonce   string `json:"nonce,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Email   string `json:"email,omitempty"`
}

// KeyResolver resolves a provider public key by key id. Satisfied by
// [KeySetCache].
type KeyResolver interface {
	KeyFor(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// Verifier validates externally issued identity tokens: signature against
// the provider key set, fixed issuer, caller-supplied audience, expiry and
// issuance window with clock-skew leeway, and the anti-replay nonce.
//
// Each failure mode carries a distinct code (AUTH_002 expired, AUTH_004
// audience, AUTH_005 issuer, AUTH_006 nonce, AUTH_007 key set, AUTH_003
// everything else) so login endpoints can surface precise errors while the
// request boundary stays uniform.
type Verifier struct {
	keys   KeyResolver
	issuer string
	leeway time.Duration
}

// NewVerifier creates a Verifier for tokens issued by the given issuer. A
// non-positive leeway falls back to [DefaultLeeway].
func NewVerifier(keys KeyResolver, issuer string, leeway time.Duration) *Verifier {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &Verifier{keys: keys, issuer: issuer, leeway: leeway}
}

// Verify validates raw and returns its claims. The audience is supplied by
// the caller (the relying-party client id for logins). When expectedNonce
// is non-empty the token's nonce claim must match it exactly; an empty
// expectedNonce skips the comparison for flows that bind replay protection
// elsewhere.
func (v *Verifier) Verify(ctx context.Context, raw, audience, expectedNonce string) (*IdentityClaims, error) {
	// Step 1: header-only parse for the key id. No signature check yet.
	kid, err := headerKeyID(raw)
	if err != nil {
		return nil, err
	}

	// Step 2: resolve the public key. Failures keep their AUTH_007 code.
	key, err := v.keys.KeyFor(ctx, kid)
	if err != nil {
		return nil, err
	}

	// Step 3: full validation. Algorithms are pinned and the key is fixed
	// to the one matching the header kid, so a token signed with any other
	// key fails here.
	claims := &identityTokenClaims{}
	_, err = jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods(identityTokenMethods),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	// Step 4: nonce comparison, constant-time.
	if expectedNonce != "" {
		if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(expectedNonce)) != 1 {
			return nil, cberr.New(cberr.CodeAuthenticationNonce,
				"auth: token nonce does not match the login attempt")
		}
	}

	out := &IdentityClaims{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Email:    claims.Email,
		Nonce:    claims.Nonce,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// headerKeyID extracts the kid from the token header without verifying the
// signature.
func headerKeyID(raw string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeAuthenticationInvalid,
			"auth: token is malformed")
	}
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return "", cberr.New(cberr.CodeAuthenticationInvalid,
			"auth: token header carries no key id")
	}
	return kid, nil
}

// classifyTokenError maps jwt/v5 sentinel errors onto the verification
// taxonomy. Anything unrecognized is a malformed or badly signed token.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return cberr.Wrap(err, cberr.CodeAuthenticationExpired,
			"auth: token is expired")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return cberr.Wrap(err, cberr.CodeAuthenticationAudience,
			"auth: token audience does not match")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return cberr.Wrap(err, cberr.CodeAuthenticationIssuer,
			"auth: token issuer does not match")
	default:
		return cberr.Wrap(err, cberr.CodeAuthenticationInvalid,
			"auth: token is invalid")
	}
}
