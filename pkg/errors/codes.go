package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., VAL, AUTH, CONF) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx  - Validation errors (400 Bad Request)
//	AUTH_xxx - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx - Authorization errors (403 Forbidden)
//	NF_xxx   - Not found errors (404 Not Found)
//	CONF_xxx - Conflict errors (409 Conflict)
//	INT_xxx  - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when request input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when authentication fails or a credential cannot be verified.
	// Login, refresh, and link endpoints map each code to a distinct
	// user-facing error; the request authenticator collapses them all to
	// CodeAuthentication at the protected-endpoint boundary.

	// CodeAuthentication indicates a general authentication failure. This is
	// the only code protected endpoints ever surface for a rejected bearer
	// token, regardless of the underlying cause.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token's expiry lies outside
	// the configured clock-skew allowance.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the token is malformed or its
	// signature cannot be verified.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationAudience indicates the token's aud claim does not
	// match the expected audience.
	CodeAuthenticationAudience Code = "AUTH_004"

	// CodeAuthenticationIssuer indicates the token's iss claim does not
	// match the configured identity provider issuer.
	CodeAuthenticationIssuer Code = "AUTH_005"

	// CodeAuthenticationNonce indicates the token's nonce claim does not
	// match the nonce issued for the login attempt.
	CodeAuthenticationNonce Code = "AUTH_006"

	// CodeAuthenticationKeySet indicates the provider's signing key could
	// not be obtained: the key-set fetch failed, the document could not be
	// parsed, or the token's key id is absent from a fresh document.
	CodeAuthenticationKeySet Code = "AUTH_007"

	// CodeAuthenticationExchange indicates the authorization-code exchange
	// with the identity provider failed.
	CodeAuthenticationExchange Code = "AUTH_008"

	// CodeAuthenticationRevoked indicates the token's jti is present on the
	// denylist.
	CodeAuthenticationRevoked Code = "AUTH_009"

	// Authorization errors (AUTHZ_xxx) - HTTP 403

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundUser indicates the requested user was not found.
	CodeNotFoundUser Code = "NF_002"

	// Conflict errors (CONF_xxx) - HTTP 409

	// CodeConflict indicates a general conflict error.
	CodeConflict Code = "CONF_001"

	// CodeConflictAlreadyLinked indicates the external identity is already
	// linked to a different local user.
	CodeConflictAlreadyLinked Code = "CONF_002"

	// CodeConflictAlreadyExists indicates the resource already exists
	// (e.g., sign-up with an email that is taken).
	CodeConflictAlreadyExists Code = "CONF_003"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"

	// CodeTimeoutDependency indicates a call to a dependent service timed out.
	CodeTimeoutDependency Code = "TIMEOUT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
