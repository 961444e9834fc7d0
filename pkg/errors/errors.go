// Package errors provides standardized error types and error handling
// utilities for the Cookbase platform. It defines common error categories,
// error codes, and helper functions for creating, wrapping, and inspecting
// errors across the authentication layer and its consumers.
//
// # Error Categories
//
// The package defines several error categories that map to common failure scenarios:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Invalid credentials, expired or revoked tokens,
//     key-set and code-exchange failures
//   - Authorization errors: Insufficient permissions, access denied
//   - NotFound errors: Resource does not exist
//   - Conflict errors: Identity already linked, email already registered
//   - Internal errors: Unexpected system failures
//   - Unavailable errors: Dependency temporarily unavailable
//   - Timeout errors: Operation exceeded time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_002") that can be
// used for error tracking, alerting, and client-side error handling. Error
// codes follow the pattern CATEGORY_XXX where CATEGORY is a short identifier
// and XXX is a numeric code. The AUTH_xxx codes mirror the verification
// failure taxonomy: login and refresh endpoints surface them individually,
// while protected endpoints collapse all of them to AUTH_001.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeAuthenticationNonce, "nonce does not match login attempt")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeInternalDatabase, "failed to load user")
//
// Check error category:
//
//	if errors.IsAuthentication(err) {
//	    // respond 401
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("operation failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
