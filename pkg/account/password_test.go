package account

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash equals plaintext")
	}
	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Errorf("VerifyPassword rejected correct password: %v", err)
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	requireCode(t, err, cberr.CodeValidation)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	requireCode(t, err, cberr.CodeValidation)
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("the-real-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt setup failed: %v", err)
	}

	err = VerifyPassword(string(hash), "a-wrong-password")
	requireCode(t, err, cberr.CodeAuthentication)
}

// TestVerifyPassword_EmptyHash covers federated-only accounts that never set
// a password. The error is indistinguishable from a wrong password.
func TestVerifyPassword_EmptyHash(t *testing.T) {
	err := VerifyPassword("", "anything")
	requireCode(t, err, cberr.CodeAuthentication)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	err := VerifyPassword("not-a-bcrypt-hash", "anything")
	requireCode(t, err, cberr.CodeAuthentication)
}
