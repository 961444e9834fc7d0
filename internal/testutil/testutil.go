// Package testutil holds small assertion helpers shared by tests across
// the module.
package testutil

import (
	"testing"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// RequireErrorCode fails the test unless err carries exactly the given
// code.
func RequireErrorCode(t *testing.T, err error, code cberr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("error is nil, want code %s", code)
	}
	if got := cberr.GetCode(err); got != code {
		t.Fatalf("error code = %q (%v), want %s", got, err, code)
	}
}

// RequireNoError fails the test when err is non-nil.
func RequireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
