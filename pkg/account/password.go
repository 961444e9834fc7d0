package account

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// MinPasswordLength is the minimum accepted password length. Length is the
// only complexity rule enforced server-side.
const MinPasswordLength = 8

// bcryptCost is the work factor for password hashing. bcrypt's default is
// tuned for interactive login latency on current hardware.
const bcryptCost = bcrypt.DefaultCost

// HashPassword hashes a plaintext password with bcrypt. The plaintext is
// validated for length first so the caller gets a VAL_001 it can surface
// instead of a truncated hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", cberr.Validationf(
			"account: password must be at least %d characters", MinPasswordLength)
	}
	// bcrypt silently truncates input beyond 72 bytes.
	if len(password) > 72 {
		return "", cberr.Validation("account: password must be at most 72 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeInternal, "account: password hashing failed")
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a stored bcrypt
// hash. A mismatch, an empty stored hash (federated-only account), and a
// malformed hash all return the generic AUTH_001 so password login cannot
// be used to probe account state.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return cberr.Unauthenticated("account: invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return cberr.Unauthenticated("account: invalid credentials")
		}
		return cberr.Wrap(err, cberr.CodeAuthentication, "account: invalid credentials")
	}
	return nil
}
