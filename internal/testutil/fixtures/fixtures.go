// Package fixtures generates provider key pairs, JWKS documents, and
// signed identity tokens for tests. Everything here is test-only material;
// keys are freshly generated per test and never persisted.
package fixtures

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer and ClientID are the provider constants used across test tokens.
const (
	Issuer   = "https://access.line.me"
	ClientID = "cookbase-channel-123"
)

// RSAKey is a provider RSA signing key with its key id.
type RSAKey struct {
	Kid     string
	Private *rsa.PrivateKey
}

// NewRSAKey generates a 2048-bit RSA key for signing test tokens.
func NewRSAKey(t *testing.T, kid string) *RSAKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	return &RSAKey{Kid: kid, Private: key}
}

// JWK returns the public JWK for the key.
func (k *RSAKey) JWK() map[string]string {
	pub := &k.Private.PublicKey
	return map[string]string{
		"kty": "RSA",
		"kid": k.Kid,
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// Sign produces an RS256 token with the given claims and this key's kid in
// the header.
func (k *RSAKey) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = k.Kid
	signed, err := token.SignedString(k.Private)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// ECKey is a provider EC signing key with its key id.
type ECKey struct {
	Kid     string
	Private *ecdsa.PrivateKey
}

// NewECKey generates a P-256 key for signing test tokens.
func NewECKey(t *testing.T, kid string) *ECKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating EC key: %v", err)
	}
	return &ECKey{Kid: kid, Private: key}
}

// JWK returns the public JWK for the key.
func (k *ECKey) JWK() map[string]string {
	pub := &k.Private.PublicKey
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	return map[string]string{
		"kty": "EC",
		"kid": k.Kid,
		"use": "sig",
		"alg": "ES256",
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, byteLen))),
		"y":   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, byteLen))),
	}
}

// Sign produces an ES256 token with the given claims and this key's kid in
// the header.
func (k *ECKey) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = k.Kid
	signed, err := token.SignedString(k.Private)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// JWKS builds a key-set document from the given JWKs.
func JWKS(t *testing.T, keys ...map[string]string) string {
	t.Helper()
	doc, err := json.Marshal(map[string]any{"keys": keys})
	if err != nil {
		t.Fatalf("marshaling JWKS: %v", err)
	}
	return string(doc)
}

// IDTokenClaims builds a valid identity-token claim set for the standard
// test issuer and client, expiring in one hour. Callers override entries
// to produce specific failures.
func IDTokenClaims(subject, nonce string) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": Issuer,
		"sub": subject,
		"aud": ClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	return claims
}
