package auth

// Secret is a string type that prevents accidental logging of sensitive
// values such as the session signing key and the provider client secret.
// Its [Secret.String] and [Secret.GoString] methods return a redacted
// placeholder. Use [Secret.Value] to retrieve the actual secret value.
//
// Security: This type provides defense-in-depth against credential leakage
// in log output, error messages, and serialized configuration. It does NOT
// provide encryption at rest; use a secret manager for secret storage.
type Secret string

// redacted is the placeholder string returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to prevent accidental logging of the secret.
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" so %#v formatting does not leak the secret.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret value for use in signing and
// authentication.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText returns "[REDACTED]" so serialized configuration never
// contains the secret.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
