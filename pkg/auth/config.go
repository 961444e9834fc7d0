// Package auth is the session-trust core of the Cookbase platform. It
// verifies identity tokens from the federated identity provider, exchanges
// authorization codes, links external subjects to local accounts, and
// mints, validates, refreshes, and revokes the service's own bearer tokens.
//
// # Components
//
// The package is a set of small collaborators, leaves first:
//
//   - [NonceStore] issues one-time anti-replay values per login attempt.
//   - [KeySetCache] caches the provider's public signing keys by key id.
//   - [Verifier] validates externally issued identity tokens.
//   - [Exchanger] trades an authorization code for an identity token.
//   - [Linker] maps verified external subjects to local users.
//   - [Issuer] mints the service's own HS256 bearer tokens.
//   - [Denylist] records revoked token ids.
//   - [Authenticator] is the cross-cutting check on every protected call.
//   - [Rotator] denylists and reissues tokens on refresh.
//
// Shared state (nonces, cached key sets, denylist entries) lives behind the
// kv.Store capability so horizontally scaled instances agree on revocation
// and keys.
//
// # Error Discipline
//
// Login, refresh, and link endpoints receive distinct AUTH_xxx codes for
// each verification failure. The [Authenticator] deliberately collapses
// every failure to AUTH_001 so protected endpoints cannot be used as an
// oracle; the underlying cause is retained in slog output only.
package auth

import (
	"net/url"
	"time"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// Defaults target the LINE Login provider, the identity provider for the
// Cookbase consumer apps. Deployments against a different provider override
// the three endpoint values together.
const (
	// DefaultIssuer is the iss claim value expected in identity tokens.
	DefaultIssuer = "https://access.line.me"

	// DefaultKeySetURL is the provider's published JWKS endpoint.
	DefaultKeySetURL = "https://api.line.me/oauth2/v2.1/certs"

	// DefaultTokenEndpoint is the provider's authorization-code token
	// endpoint.
	DefaultTokenEndpoint = "https://api.line.me/oauth2/v2.1/token"

	// DefaultProviderTimeout bounds each outbound call to the provider.
	// Timeouts are treated as transient failures; nothing here retries.
	DefaultProviderTimeout = 10 * time.Second

	// DefaultTokenTTL is the lifetime of issued session tokens.
	DefaultTokenTTL = 1 * time.Hour

	// DefaultLeeway is the clock-skew allowance applied in both directions
	// when validating exp and iat claims.
	DefaultLeeway = 5 * time.Minute

	// DefaultNonceTTL bounds how long a login attempt may take between
	// nonce issuance and identity-token verification.
	DefaultNonceTTL = 10 * time.Minute

	// DefaultKeySetTTL is how long a fetched key-set document is reused.
	// Freshness is a performance optimization; correctness relies on the
	// TTL eventually evicting rotated keys.
	DefaultKeySetTTL = 24 * time.Hour

	// MinSigningKeyLen is the minimum session signing key length in bytes.
	// HS256 keys shorter than the hash output weaken the MAC.
	MinSigningKeyLen = 32
)

// Config carries the settings for the session-trust core. Load it with
// pkg/config so env vars, config files, and defaults layer correctly.
type Config struct {
	// Issuer is the exact iss claim required in identity tokens.
	Issuer string `json:"issuer" yaml:"issuer" env:"ISSUER" envDefault:"https://access.line.me"`

	// KeySetURL is the provider's JWKS endpoint.
	KeySetURL string `json:"keyset_url" yaml:"keyset_url" env:"KEYSET_URL" envDefault:"https://api.line.me/oauth2/v2.1/certs"`

	// TokenEndpoint is the provider's authorization-code token endpoint.
	TokenEndpoint string `json:"token_endpoint" yaml:"token_endpoint" env:"TOKEN_ENDPOINT" envDefault:"https://api.line.me/oauth2/v2.1/token"`

	// ClientID is the relying-party channel id, and the aud claim expected
	// in identity tokens issued to Cookbase.
	ClientID string `json:"client_id" yaml:"client_id" env:"CLIENT_ID" required:"true"`

	// ClientSecret authenticates the code exchange with the provider.
	ClientSecret Secret `json:"client_secret" yaml:"client_secret" env:"CLIENT_SECRET"`

	// SigningKey is the server-held symmetric key for session tokens. It
	// is distinct from the provider's keys and never leaves the service.
	SigningKey Secret `json:"signing_key" yaml:"signing_key" env:"SIGNING_KEY" required:"true"`

	// ProviderTimeout bounds outbound calls to the provider.
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout" env:"PROVIDER_TIMEOUT"`

	// TokenTTL is the lifetime of issued session tokens.
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl" env:"TOKEN_TTL"`

	// Leeway is the clock-skew allowance for exp and iat validation.
	Leeway time.Duration `json:"leeway" yaml:"leeway" env:"LEEWAY"`

	// NonceTTL is the login-attempt nonce lifetime.
	NonceTTL time.Duration `json:"nonce_ttl" yaml:"nonce_ttl" env:"NONCE_TTL"`

	// KeySetTTL is the key-set cache lifetime.
	KeySetTTL time.Duration `json:"keyset_ttl" yaml:"keyset_ttl" env:"KEYSET_TTL"`
}

// DefaultConfig returns a Config with LINE provider endpoints and default
// lifetimes. ClientID, ClientSecret, and SigningKey must still be set.
func DefaultConfig() *Config {
	return &Config{
		Issuer:          DefaultIssuer,
		KeySetURL:       DefaultKeySetURL,
		TokenEndpoint:   DefaultTokenEndpoint,
		ProviderTimeout: DefaultProviderTimeout,
		TokenTTL:        DefaultTokenTTL,
		Leeway:          DefaultLeeway,
		NonceTTL:        DefaultNonceTTL,
		KeySetTTL:       DefaultKeySetTTL,
	}
}

// Validate checks the configuration and applies default lifetimes to unset
// duration fields. It returns a coded error describing the first problem
// found.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return cberr.New(cberr.CodeValidationRequired, "auth: client_id is required")
	}
	if len(c.SigningKey) < MinSigningKeyLen {
		return cberr.Newf(cberr.CodeValidation,
			"auth: signing_key must be at least %d bytes", MinSigningKeyLen)
	}
	if c.Issuer == "" {
		return cberr.New(cberr.CodeValidationRequired, "auth: issuer is required")
	}

	for name, raw := range map[string]string{
		"keyset_url":     c.KeySetURL,
		"token_endpoint": c.TokenEndpoint,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return cberr.Newf(cberr.CodeValidation,
				"auth: %s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.ProviderTimeout < 0 || c.TokenTTL < 0 || c.Leeway < 0 ||
		c.NonceTTL < 0 || c.KeySetTTL < 0 {
		return cberr.New(cberr.CodeValidation, "auth: durations must not be negative")
	}
	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.Leeway == 0 {
		c.Leeway = DefaultLeeway
	}
	if c.NonceTTL == 0 {
		c.NonceTTL = DefaultNonceTTL
	}
	if c.KeySetTTL == 0 {
		c.KeySetTTL = DefaultKeySetTTL
	}
}
