package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"math/big"
	"net/http"
	"time"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
	"github.com/cookbase/cookbase-auth/pkg/kv"
)

// keySetCacheKey is where the raw JWKS document lives in the shared store.
// A single key suffices because the cache serves one configured provider.
const keySetCacheKey = "auth:keyset:document"

// maxKeySetBytes caps the JWKS download. Provider documents are a few
// kilobytes; a megabyte of "keys" is a misbehaving endpoint.
const maxKeySetBytes = 1 << 20

// jwksDocument is the provider's published key-set document.
type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

// jwksKey is a single JSON Web Key. Only the members needed to rebuild RSA
// and EC public keys are retained.
type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`

	// RSA members.
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC members.
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// KeySetCache resolves the provider's public signing keys by key id. The
// raw JWKS document is cached in the shared key-value store so every
// instance in the cluster reuses one fetch per TTL window.
//
// Cache freshness is a performance optimization only; a rotated-away key
// keeps verifying until the TTL evicts it, and a newly published key is
// picked up on the first fetch after eviction.
type KeySetCache struct {
	store kv.Store
	http  *http.Client
	url   string
	ttl   time.Duration
}

// NewKeySetCache creates a cache fetching from the given JWKS URL. A nil
// httpClient falls back to a client with [DefaultProviderTimeout]; a
// non-positive ttl falls back to [DefaultKeySetTTL].
func NewKeySetCache(store kv.Store, jwksURL string, ttl time.Duration, httpClient *http.Client) *KeySetCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultProviderTimeout}
	}
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}
	return &KeySetCache{store: store, http: httpClient, url: jwksURL, ttl: ttl}
}

// KeyFor returns the public key for the given key id. A kid absent from a
// fresh document is a hard AUTH_007 failure; verification is never skipped
// for an unknown key. Fetch and parse failures also surface as AUTH_007
// with the cause attached for logging.
func (c *KeySetCache) KeyFor(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if kid == "" {
		return nil, cberr.New(cberr.CodeAuthenticationKeySet,
			"auth: key id is empty")
	}

	doc, err := c.document(ctx)
	if err != nil {
		return nil, err
	}

	for _, k := range doc.Keys {
		if k.Kid != kid {
			continue
		}
		key, err := k.publicKey()
		if err != nil {
			return nil, err
		}
		return key, nil
	}
	return nil, cberr.Newf(cberr.CodeAuthenticationKeySet,
		"auth: key id %q not present in provider key set", kid)
}

// document returns the parsed JWKS document, fetching from the provider
// only when the cached copy has expired.
func (c *KeySetCache) document(ctx context.Context) (*jwksDocument, error) {
	raw, ok, err := c.store.Get(ctx, keySetCacheKey)
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeAuthenticationKeySet,
			"auth: reading cached key set failed")
	}
	if !ok {
		raw, err = c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		// Losing a concurrent Set here is harmless; both writers hold the
		// same document modulo a rotation race the TTL already covers.
		if err := c.store.Set(ctx, keySetCacheKey, raw, c.ttl); err != nil {
			return nil, cberr.Wrap(err, cberr.CodeAuthenticationKeySet,
				"auth: caching key set failed")
		}
	}

	doc := &jwksDocument{}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeAuthenticationKeySet,
			"auth: parsing key set document failed")
	}
	if len(doc.Keys) == 0 {
		return nil, cberr.New(cberr.CodeAuthenticationKeySet,
			"auth: provider key set document contains no keys")
	}
	return doc, nil
}

// fetch downloads the JWKS document from the provider endpoint.
func (c *KeySetCache) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeAuthenticationKeySet,
			"auth: building key set request failed")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeAuthenticationKeySet,
			"auth: fetching key set failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", cberr.Newf(cberr.CodeAuthenticationKeySet,
			"auth: key set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeAuthenticationKeySet,
			"auth: reading key set response failed")
	}
	return string(body), nil
}

// publicKey rebuilds the Go public key from the JWK members.
func (k *jwksKey) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaKey()
	case "EC":
		return k.ecKey()
	default:
		return nil, cberr.Newf(cberr.CodeAuthenticationKeySet,
			"auth: unsupported key type %q for key id %q", k.Kty, k.Kid)
	}
}

func (k *jwksKey) rsaKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, cberr.Wrapf(err, cberr.CodeAuthenticationKeySet,
			"auth: decoding RSA modulus for key id %q failed", k.Kid)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, cberr.Wrapf(err, cberr.CodeAuthenticationKeySet,
			"auth: decoding RSA exponent for key id %q failed", k.Kid)
	}
	// The exponent must fit the int field without truncation and be at
	// least 3 to form a usable public key.
	if len(e) > 8 {
		return nil, cberr.Newf(cberr.CodeAuthenticationKeySet,
			"auth: RSA exponent for key id %q exceeds 8 bytes", k.Kid)
	}
	exp := new(big.Int).SetBytes(e).Int64()
	if exp < 3 || exp > math.MaxInt32 {
		return nil, cberr.Newf(cberr.CodeAuthenticationKeySet,
			"auth: RSA exponent %d for key id %q is out of range", exp, k.Kid)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exp),
	}, nil
}

func (k *jwksKey) ecKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, cberr.Newf(cberr.CodeAuthenticationKeySet,
			"auth: unsupported curve %q for key id %q", k.Crv, k.Kid)
	}

	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, cberr.Wrapf(err, cberr.CodeAuthenticationKeySet,
			"auth: decoding EC x coordinate for key id %q failed", k.Kid)
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, cberr.Wrapf(err, cberr.CodeAuthenticationKeySet,
			"auth: decoding EC y coordinate for key id %q failed", k.Kid)
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}
