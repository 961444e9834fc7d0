package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeCategory(t *testing.T) {
	tests := []struct {
		name string
		code Code
		want string
	}{
		{name: "validation", code: CodeValidation, want: "VAL"},
		{name: "authentication generic", code: CodeAuthentication, want: "AUTH"},
		{name: "authentication expired", code: CodeAuthenticationExpired, want: "AUTH"},
		{name: "authentication nonce", code: CodeAuthenticationNonce, want: "AUTH"},
		{name: "authentication key set", code: CodeAuthenticationKeySet, want: "AUTH"},
		{name: "authorization", code: CodeAuthorization, want: "AUTHZ"},
		{name: "not found user", code: CodeNotFoundUser, want: "NF"},
		{name: "already linked", code: CodeConflictAlreadyLinked, want: "CONF"},
		{name: "internal database", code: CodeInternalDatabase, want: "INT"},
		{name: "unavailable", code: CodeUnavailable, want: "UNAVAIL"},
		{name: "timeout", code: CodeTimeout, want: "TIMEOUT"},
		{name: "no underscore", code: Code("WEIRD"), want: "WEIRD"},
		{name: "empty", code: Code(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Category())
		})
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "AUTH_006", CodeAuthenticationNonce.String())
	assert.Equal(t, "CONF_002", CodeConflictAlreadyLinked.String())
}

// Every AUTH code must be distinct: each verification failure subtype maps to
// a specific user-facing error at the login, refresh, and link endpoints.
func TestAuthCodesAreDistinct(t *testing.T) {
	codes := []Code{
		CodeAuthentication,
		CodeAuthenticationExpired,
		CodeAuthenticationInvalid,
		CodeAuthenticationAudience,
		CodeAuthenticationIssuer,
		CodeAuthenticationNonce,
		CodeAuthenticationKeySet,
		CodeAuthenticationExchange,
		CodeAuthenticationRevoked,
	}

	seen := make(map[Code]bool, len(codes))
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
		assert.Equal(t, "AUTH", c.Category())
	}
}
